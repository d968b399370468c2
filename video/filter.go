package video

import (
	"fmt"
	"strings"
)

const (
	fontFileBold    = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"
	fontFileRegular = "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"

	// Fixed drawtext anchors for BOTTOM-placement styles.
	bottomQuoteFontSize  = 56
	bottomAuthorFontSize = 40
	bottomQuoteY         = "h-400"
	bottomAuthorY        = "h-280"
)

// EscapeDrawtext escapes user text for interpolation inside a drawtext
// expression. The replacement order matters: backslash must come first or the
// escape characters introduced for the other six would themselves get
// re-escaped.
func EscapeDrawtext(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, `'`, `\'`)
	text = strings.ReplaceAll(text, `:`, `\:`)
	text = strings.ReplaceAll(text, `[`, `\[`)
	text = strings.ReplaceAll(text, `]`, `\]`)
	text = strings.ReplaceAll(text, `,`, `\,`)
	text = strings.ReplaceAll(text, `;`, `\;`)
	return text
}

// scalePadFull scales into the full canvas preserving aspect ratio and pads to
// exact canvas size, media centered.
func scalePadFull() string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black",
		CanvasWidth, CanvasHeight, CanvasWidth, CanvasHeight)
}

// scalePadGrouped scales into a height-limited box and pads to canvas size
// with the media block offset below the text block.
func scalePadGrouped(mediaHeight int, mediaStartY float64) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:%g:black",
		CanvasWidth, mediaHeight, CanvasWidth, CanvasHeight, mediaStartY)
}

// normalizeChain is the per-input chain required before concatenation: every
// clip gets identical resolution, SAR and frame rate. Concatenating without
// this is undefined behavior in ffmpeg and must never be attempted.
func normalizeChain() string {
	return scalePadFull() + ",setsar=1"
}

func fadeInVideo(duration float64) string {
	return fmt.Sprintf("fade=in:st=0:d=%g:color=black", duration)
}

// insertFadeAfterPad places the fade right after the leading scale/pad entry
// and before any drawtext entries. Burned-in text never fades with the media.
func insertFadeAfterPad(filters []string, fadeDur float64) []string {
	out := make([]string, 0, len(filters)+1)
	out = append(out, filters[0], fadeInVideo(fadeDur))
	return append(out, filters[1:]...)
}

// smartScale picks the canvas-fit chain from the source geometry: tall and
// square sources fill the full canvas height, wide sources fill the full
// width, each padded to the exact canvas afterwards.
func smartScale(width, height int) string {
	targetAR := float64(CanvasWidth) / float64(CanvasHeight)
	if height > 0 && float64(width)/float64(height) <= targetAR {
		return fmt.Sprintf("scale=-1:%d:force_original_aspect_ratio=decrease,%s", CanvasHeight, scalePadFull())
	}
	return fmt.Sprintf("scale=%d:-1:force_original_aspect_ratio=decrease,%s", CanvasWidth, scalePadFull())
}

func fadeInAudio(duration float64) string {
	return fmt.Sprintf("afade=in:0:%g", duration)
}

// concatGraph builds the filter_complex for an n-clip concatenation with
// per-input normalization, yielding pad [outv].
func concatGraph(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(";")
		}
		fmt.Fprintf(&b, "[%d:v]%s,fps=30[v%d]", i, normalizeChain(), i)
	}
	b.WriteString(";")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[v%d]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=0[outv]", n)
	return b.String()
}

// concatGraphWithAudio is the same concatenation but interleaving each input's
// audio track, yielding [outv] and [outa]. Only valid when every input
// actually carries audio.
func concatGraphWithAudio(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(";")
		}
		fmt.Fprintf(&b, "[%d:v]%s,fps=30[v%d]", i, normalizeChain(), i)
	}
	b.WriteString(";")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[v%d][%d:a]", i, i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=1[outv][outa]", n)
	return b.String()
}

// overlayGraph darkens the base layer and merges it back through the radial
// mask on input 1, so edges darken while the center keeps its brightness.
func overlayGraph() string {
	return fmt.Sprintf("[0:v]eq=brightness=-0.3[darkened];[1:v]scale=%d:%d[mask];[darkened][0:v][mask]maskedmerge",
		CanvasWidth, CanvasHeight)
}

// amixGraph mixes the video's own audio track with the external audio.
func amixGraph() string {
	return "[0:a][1:a]amix=inputs=2:duration=first:dropout_transition=2"
}

func quoteLineFilter(line string, fontSize int, y float64) string {
	return fmt.Sprintf("drawtext=text='%s':fontfile=%s:fontsize=%d:fontcolor=white:x=(w-text_w)/2:y=%g:shadowcolor=black:shadowx=2:shadowy=2",
		EscapeDrawtext(line), fontFileBold, fontSize, y)
}

func captionLineFilter(line string, fontSize int, y, start, end float64) string {
	return fmt.Sprintf("drawtext=text='%s':fontfile=%s:fontsize=%d:fontcolor=white:x=(w-text_w)/2:y=%g:shadowcolor=black:shadowx=2:shadowy=2:enable='between(t,%g,%g)'",
		EscapeDrawtext(line), fontFileBold, fontSize, y, start, end)
}

func watermarkFilter(watermark string) string {
	return fmt.Sprintf("drawtext=text='%s':fontfile=%s:fontsize=%d:fontcolor=white@0.4:x=(w-text_w)/2:y=%d:shadowcolor=black@0.8:shadowx=3:shadowy=3",
		EscapeDrawtext(watermark), fontFileRegular, watermarkFontSize, (CanvasHeight-watermarkFontSize)/2)
}

// topTextFilters renders a quote block with per-line placement starting at
// textStartY, the author anchored at 65% of the canvas, and the watermark.
// Empty entries emit no expression at all.
func topTextFilters(text TextConfig, layout TextLayout, textStartY float64) []string {
	var filters []string

	for i, line := range layout.Lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineY := textStartY + float64(layout.TopPadding) + float64(i)*layout.LineHeight
		filters = append(filters, quoteLineFilter(line, layout.FontSize, lineY))
	}

	if strings.TrimSpace(text.Author) != "" {
		authorY := float64(CanvasHeight) * authorYFactor
		filters = append(filters, quoteLineFilter(text.Author, layout.AuthorFontSize, authorY))
	}

	if strings.TrimSpace(text.Watermark) != "" {
		filters = append(filters, watermarkFilter(text.Watermark))
	}

	return filters
}

// bottomTextFilters renders the quote and author at fixed anchors near the
// bottom of the canvas.
func bottomTextFilters(text TextConfig) []string {
	var filters []string

	if strings.TrimSpace(text.Quote) != "" {
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontfile=%s:fontsize=%d:fontcolor=white:x=(w-text_w)/2:y=%s:shadowcolor=black:shadowx=3:shadowy=3",
			EscapeDrawtext(text.Quote), fontFileBold, bottomQuoteFontSize, bottomQuoteY))
	}

	if strings.TrimSpace(text.Author) != "" {
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontfile=%s:fontsize=%d:fontcolor=white:x=(w-text_w)/2:y=%s:shadowcolor=black:shadowx=2:shadowy=2",
			EscapeDrawtext(text.Author), fontFileBold, bottomAuthorFontSize, bottomAuthorY))
	}

	if strings.TrimSpace(text.Watermark) != "" {
		filters = append(filters, watermarkFilter(text.Watermark))
	}

	return filters
}

// captionFilters renders each caption as an independently timed block. Every
// caption gets its own fresh layout since the content differs.
func captionFilters(captions []Caption) []string {
	var filters []string

	for _, caption := range captions {
		if strings.TrimSpace(caption.Text) == "" {
			continue
		}

		layout := ComputeLayout(caption.Text, "", CanvasWidth)
		placement := placeGroup(layout)
		end := caption.Start + caption.Duration

		for i, line := range layout.Lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			lineY := placement.TextStartY + float64(layout.TopPadding) + float64(i)*layout.LineHeight
			filters = append(filters, captionLineFilter(line, layout.FontSize, lineY, caption.Start, end))
		}
	}

	return filters
}

// joinFilters chains non-empty expressions; an empty list means no -vf
// argument should be emitted at all.
func joinFilters(filters []string) string {
	nonEmpty := filters[:0:0]
	for _, f := range filters {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, ",")
}
