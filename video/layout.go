package video

import (
	"math"
	"strings"
)

// Canvas and text metrics for the 9:16 reel format. The character-count wrap
// heuristic approximates glyph width; it is intentionally the same formula the
// preview uses so line breaks match between preview and final render.
const (
	CanvasWidth  = 1080
	CanvasHeight = 1920

	layoutTopPadding    = 100
	layoutSidePadding   = 80
	layoutBottomPadding = 80
	layoutFontSize      = 44
	layoutAuthorSize    = 32
	layoutSpaceBetween  = 40

	lineHeightFactor = 1.4

	// Vertical budget for the media block in grouped (TOP text) layouts. A
	// quote long enough to eat the whole canvas still leaves the media a
	// sliver; a zero or negative scale target is never emitted.
	maxMediaHeight = 800
	minMediaHeight = 120
	groupMargin    = 100

	watermarkFontSize = 40
	authorYFactor     = 0.65
)

// TextLayout is the word-wrapped form of a text block plus the vertical
// metrics needed to position it on the canvas. It is recomputed for every
// block, never cached.
type TextLayout struct {
	Lines            []string
	FontSize         int
	AuthorFontSize   int
	LineHeight       float64
	AuthorLineHeight float64
	TopPadding       int
	SidePadding      int
	BottomPadding    int
	QuoteHeight      float64
	AuthorHeight     float64
	SpaceBetween     float64
	TotalTextHeight  float64
}

// ComputeLayout word-wraps text for the given canvas width and computes block
// heights. secondary is the author line; it contributes height but is not
// wrapped. Empty or whitespace-only text yields zero lines and the layout
// stays valid for watermark-only renders.
func ComputeLayout(text, secondary string, canvasWidth int) TextLayout {
	layout := TextLayout{
		FontSize:         layoutFontSize,
		AuthorFontSize:   layoutAuthorSize,
		LineHeight:       layoutFontSize * lineHeightFactor,
		AuthorLineHeight: layoutAuthorSize * lineHeightFactor,
		TopPadding:       layoutTopPadding,
		SidePadding:      layoutSidePadding,
		BottomPadding:    layoutBottomPadding,
	}

	maxWidth := canvasWidth - layoutSidePadding*2
	charsPerLine := int(math.Floor(float64(maxWidth) / (layoutFontSize * 0.5)))

	if strings.TrimSpace(text) != "" {
		layout.Lines = wrapWords(text, charsPerLine)
		layout.QuoteHeight = float64(len(layout.Lines)) * layout.LineHeight
	}

	hasQuote := len(layout.Lines) > 0
	if strings.TrimSpace(secondary) != "" {
		layout.AuthorHeight = layout.AuthorLineHeight
		if hasQuote {
			layout.SpaceBetween = layoutSpaceBetween
		}
	}

	layout.TotalTextHeight = float64(layout.TopPadding) + layout.QuoteHeight +
		layout.SpaceBetween + layout.AuthorHeight + float64(layout.BottomPadding)

	return layout
}

// wrapWords greedily packs words into lines of at most limit characters.
// A word longer than the limit is never split; it becomes its own line.
func wrapWords(text string, limit int) []string {
	var lines []string
	var current string

	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if len(candidate) <= limit {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// groupedPlacement centers a text-above-media group vertically on the canvas.
type groupedPlacement struct {
	MediaHeight int
	GroupStartY float64
	TextStartY  float64
	MediaStartY float64
}

func placeGroup(layout TextLayout) groupedPlacement {
	mediaHeight := int(math.Min(maxMediaHeight, float64(CanvasHeight)-layout.TotalTextHeight-groupMargin))
	if mediaHeight < minMediaHeight {
		mediaHeight = minMediaHeight
	}
	totalGroupHeight := layout.TotalTextHeight + float64(mediaHeight)
	groupStartY := (float64(CanvasHeight) - totalGroupHeight) / 2

	return groupedPlacement{
		MediaHeight: mediaHeight,
		GroupStartY: groupStartY,
		TextStartY:  groupStartY,
		MediaStartY: groupStartY + layout.TotalTextHeight,
	}
}
