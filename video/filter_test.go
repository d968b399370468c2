package video

import (
	"fmt"
	"strings"
	"testing"
)

func TestEscapeDrawtext(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"single quote", "it's", `it\'s`},
		{"colon", "ratio 16:9", `ratio 16\:9`},
		{"brackets", "[tag]", `\[tag\]`},
		{"comma", "a, b", `a\, b`},
		{"semicolon", "x; y", `x\; y`},
		{"backslash", `a\b`, `a\\b`},
		{"empty", "", ""},
		{"everything", `\':[],;`, `\\\'\:\[\]\,\;`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeDrawtext(tt.in); got != tt.want {
				t.Errorf("EscapeDrawtext(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// The backslash pass must run first. If any later pass ran before it, the
// escapes it introduced would be doubled.
func TestEscapeDrawtextNoDoubleEscape(t *testing.T) {
	got := EscapeDrawtext("a:b")
	if got != `a\:b` {
		t.Errorf("colon escaped as %q, want %q", got, `a\:b`)
	}
	if strings.Contains(got, `\\:`) {
		t.Error("colon escape was itself re-escaped")
	}
}

func TestTopTextFiltersSkipsEmptyEntries(t *testing.T) {
	layout := ComputeLayout("A quote", "", CanvasWidth)
	filters := topTextFilters(TextConfig{Quote: "A quote"}, layout, 100)

	if len(filters) != 1 {
		t.Fatalf("expected exactly the quote filter, got %d: %v", len(filters), filters)
	}
	for _, f := range filters {
		if strings.Contains(f, "text=''") {
			t.Errorf("empty drawtext emitted: %s", f)
		}
	}
}

func TestTopTextFiltersWatermarkOnly(t *testing.T) {
	layout := ComputeLayout("", "", CanvasWidth)
	filters := topTextFilters(TextConfig{Watermark: "@handle"}, layout, 0)

	if len(filters) != 1 {
		t.Fatalf("expected only the watermark filter, got %v", filters)
	}
	if !strings.Contains(filters[0], "white@0.4") {
		t.Errorf("watermark should be semi-transparent: %s", filters[0])
	}
}

func TestBottomTextFiltersAnchors(t *testing.T) {
	filters := bottomTextFilters(TextConfig{Quote: "Q", Author: "A"})
	if len(filters) != 2 {
		t.Fatalf("expected quote and author filters, got %v", filters)
	}
	if !strings.Contains(filters[0], "y=h-400") {
		t.Errorf("quote anchor wrong: %s", filters[0])
	}
	if !strings.Contains(filters[1], "y=h-280") {
		t.Errorf("author anchor wrong: %s", filters[1])
	}
}

func TestCaptionFiltersTimedWindows(t *testing.T) {
	filters := captionFilters([]Caption{
		{Text: "first", Start: 0, Duration: 3},
		{Text: "second", Start: 3, Duration: 2},
		{Text: "   ", Start: 5, Duration: 2},
	})

	joined := strings.Join(filters, "\n")
	if !strings.Contains(joined, "enable='between(t,0,3)'") {
		t.Errorf("first caption window missing:\n%s", joined)
	}
	if !strings.Contains(joined, "enable='between(t,3,5)'") {
		t.Errorf("second caption window missing:\n%s", joined)
	}
	if strings.Contains(joined, "fade") {
		t.Error("captions must appear at hard boundaries, never fade")
	}
	for _, f := range filters {
		if strings.Contains(f, "text=''") {
			t.Errorf("blank caption emitted a filter: %s", f)
		}
	}
}

func TestConcatGraph(t *testing.T) {
	graph := concatGraph(3)

	if !strings.Contains(graph, "concat=n=3:v=1:a=0[outv]") {
		t.Errorf("concat pad missing: %s", graph)
	}
	for i := 0; i < 3; i++ {
		prefix := fmt.Sprintf("[%d:v]", i)
		if !strings.Contains(graph, prefix+"scale=1080:1920") {
			t.Errorf("input %d not normalized: %s", i, graph)
		}
	}
	if strings.Count(graph, "setsar=1") != 3 {
		t.Errorf("every input needs setsar=1: %s", graph)
	}
	if strings.Count(graph, "fps=30") != 3 {
		t.Errorf("every input needs fps=30: %s", graph)
	}
}

func TestConcatGraphWithAudio(t *testing.T) {
	graph := concatGraphWithAudio(2)

	if !strings.Contains(graph, "concat=n=2:v=1:a=1[outv][outa]") {
		t.Errorf("audio concat pads missing: %s", graph)
	}
	if !strings.Contains(graph, "[v0][0:a][v1][1:a]") {
		t.Errorf("interleaved pad order wrong: %s", graph)
	}
}

func TestOverlayGraphShape(t *testing.T) {
	graph := overlayGraph()
	for _, part := range []string{"eq=brightness=-0.3", "scale=1080:1920", "maskedmerge"} {
		if !strings.Contains(graph, part) {
			t.Errorf("overlay graph missing %q: %s", part, graph)
		}
	}
}

func TestJoinFilters(t *testing.T) {
	if got := joinFilters(nil); got != "" {
		t.Errorf("empty list should join to empty string, got %q", got)
	}
	if got := joinFilters([]string{"a", "", "b"}); got != "a,b" {
		t.Errorf("blank entries should be dropped, got %q", got)
	}
}

func TestInsertFadeAfterPad(t *testing.T) {
	filters := []string{scalePadFull(), "drawtext=text='Q':x=0:y=0", "drawtext=text='A':x=0:y=1"}
	got := insertFadeAfterPad(filters, 9)

	if len(got) != 4 {
		t.Fatalf("expected 4 entries, got %v", got)
	}
	if got[0] != scalePadFull() {
		t.Errorf("scale/pad must stay first: %v", got)
	}
	if !strings.HasPrefix(got[1], "fade=in:") {
		t.Errorf("fade must follow the pad stage directly: %v", got)
	}
	for _, f := range got[2:] {
		if !strings.HasPrefix(f, "drawtext") {
			t.Errorf("text entries must all come after the fade: %v", got)
		}
	}
}

func TestInsertFadeAfterPadSingleEntry(t *testing.T) {
	got := insertFadeAfterPad([]string{scalePadFull()}, 3)
	if len(got) != 2 || !strings.HasPrefix(got[1], "fade=in:") {
		t.Errorf("got %v", got)
	}
}

func TestSmartScale(t *testing.T) {
	tall := smartScale(1080, 1920)
	if !strings.HasPrefix(tall, "scale=-1:1920:") {
		t.Errorf("tall source should fill the canvas height: %s", tall)
	}

	square := smartScale(1000, 1000)
	if !strings.HasPrefix(square, "scale=1080:-1:") {
		t.Errorf("square source is wider than 9:16, should fill the width: %s", square)
	}

	wide := smartScale(1920, 1080)
	if !strings.HasPrefix(wide, "scale=1080:-1:") {
		t.Errorf("wide source should fill the canvas width: %s", wide)
	}

	for _, chain := range []string{tall, square, wide} {
		if !strings.Contains(chain, "pad=1080:1920") {
			t.Errorf("chain must still pad to the exact canvas: %s", chain)
		}
	}
}

func TestFadeExpressions(t *testing.T) {
	if got := fadeInVideo(7.5); got != "fade=in:st=0:d=7.5:color=black" {
		t.Errorf("fadeInVideo = %q", got)
	}
	if got := fadeInAudio(7.5); got != "afade=in:0:7.5" {
		t.Errorf("fadeInAudio = %q", got)
	}
}
