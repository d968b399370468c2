package video

import (
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func imageClip(start, duration float64) Clip {
	return Clip{Source: ClipSource{Kind: KindImage, Ref: "img.jpg"}, Start: start, Duration: duration}
}

func videoClip(start, duration float64) Clip {
	return Clip{Source: ClipSource{Kind: KindVideo, Ref: "clip.mp4"}, Start: start, Duration: duration}
}

func TestReconcileGapFill(t *testing.T) {
	clips := []Clip{videoClip(0, 0), videoClip(5, 0), videoClip(12, 0)}
	got := ReconcileDurations(clips, 100, 0, StandardDefaults(), discardLogger())

	want := []float64{5, 7, 5}
	for i, d := range want {
		if got.Clips[i].Duration != d {
			t.Errorf("clip %d duration = %g, want %g", i, got.Clips[i].Duration, d)
		}
	}
	if got.TotalVideoDuration != 17 {
		t.Errorf("total = %g, want 17", got.TotalVideoDuration)
	}
}

func TestReconcileLastClipUsesTypeDefault(t *testing.T) {
	clips := []Clip{videoClip(0, 3), imageClip(3, 0)}
	got := ReconcileDurations(clips, 100, 0, StandardDefaults(), discardLogger())

	if got.Clips[1].Duration != 4 {
		t.Errorf("last image clip duration = %g, want the 4s image default", got.Clips[1].Duration)
	}
}

func TestReconcileNonPositiveGapFallsBack(t *testing.T) {
	// Equal starts produce a zero gap, which must not be used as a duration.
	clips := []Clip{videoClip(5, 0), videoClip(5, 0)}
	got := ReconcileDurations(clips, 100, 0, StandardDefaults(), discardLogger())

	if got.Clips[0].Duration != 5 {
		t.Errorf("zero gap should fall back to the 5s video default, got %g", got.Clips[0].Duration)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	clips := []Clip{videoClip(0, 0), imageClip(6, 0)}
	defaults := StandardDefaults()
	logger := discardLogger()

	first := ReconcileDurations(clips, 50, 0, defaults, logger)
	second := ReconcileDurations(first.Clips, 50, 0, defaults, logger)

	for i := range first.Clips {
		if first.Clips[i].Duration != second.Clips[i].Duration {
			t.Errorf("clip %d changed on second pass: %g vs %g",
				i, first.Clips[i].Duration, second.Clips[i].Duration)
		}
	}
	if first.FinalDuration != second.FinalDuration {
		t.Errorf("final duration changed on second pass: %g vs %g",
			first.FinalDuration, second.FinalDuration)
	}
}

func TestReconcileInputNotMutated(t *testing.T) {
	clips := []Clip{videoClip(0, 0)}
	ReconcileDurations(clips, 50, 0, StandardDefaults(), discardLogger())

	if clips[0].Duration != 0 {
		t.Error("reconciliation mutated the caller's slice")
	}
}

func TestReconcileAudioCapsFinal(t *testing.T) {
	clips := []Clip{videoClip(0, 10), videoClip(10, 10)}
	got := ReconcileDurations(clips, 12, 0, StandardDefaults(), discardLogger())

	if got.TotalVideoDuration != 20 {
		t.Errorf("total = %g, want 20", got.TotalVideoDuration)
	}
	if got.FinalDuration != 12 {
		t.Errorf("final = %g, want audio cap 12", got.FinalDuration)
	}
}

func TestReconcileUserCap(t *testing.T) {
	clips := []Clip{videoClip(0, 10)}
	got := ReconcileDurations(clips, 30, 8, StandardDefaults(), discardLogger())

	if got.FinalDuration != 8 {
		t.Errorf("final = %g, want user cap 8", got.FinalDuration)
	}
}

func TestFinalDuration(t *testing.T) {
	if got := finalDuration(30, 0); got != 30 {
		t.Errorf("no cap: got %g, want 30", got)
	}
	if got := finalDuration(30, 12); got != 12 {
		t.Errorf("capped: got %g, want 12", got)
	}
	if got := finalDuration(10, 20); got != 10 {
		t.Errorf("audio shorter than cap: got %g, want 10", got)
	}
}
