package video

import (
	"log/slog"
	"math"
)

// Reconciled is the result of filling in missing clip durations and deriving
// the final output length.
type Reconciled struct {
	Clips              []Clip
	TotalVideoDuration float64
	FinalDuration      float64
}

// ReconcileDurations fills missing clip durations and computes the final
// timeline length. A clip without a duration borrows the gap to the next
// clip's start when that gap is positive, otherwise it falls back to the
// per-type default; the last clip always takes the default. The final duration
// is the video total capped by the audio length, then by the user cap.
//
// Reconciliation is idempotent: clips that already carry a positive duration
// are never touched.
func ReconcileDurations(clips []Clip, audioDuration, maxDuration float64, defaults Defaults, logger *slog.Logger) Reconciled {
	out := make([]Clip, len(clips))
	copy(out, clips)

	for i := range out {
		if out[i].Duration > 0 {
			continue
		}

		if i < len(out)-1 {
			gap := out[i+1].Start - out[i].Start
			if gap > 0 {
				out[i].Duration = gap
				logger.Debug("Gap-filled clip duration",
					slog.Int("clip", i+1),
					slog.Float64("duration", gap))
				continue
			}
		}

		out[i].Duration = defaults.clipDefault(out[i].Source.Kind)
		logger.Debug("Defaulted clip duration",
			slog.Int("clip", i+1),
			slog.Float64("duration", out[i].Duration))
	}

	var total float64
	for _, c := range out {
		total += c.Duration
	}

	final := math.Min(total, audioDuration)
	if maxDuration > 0 {
		final = math.Min(final, maxDuration)
	}

	return Reconciled{
		Clips:              out,
		TotalVideoDuration: total,
		FinalDuration:      final,
	}
}

// finalDuration caps the audio length by the optional user maximum; used by
// the single-media styles where the timeline length is the audio length.
func finalDuration(audioDuration, maxDuration float64) float64 {
	if maxDuration > 0 {
		return math.Min(maxDuration, audioDuration)
	}
	return audioDuration
}
