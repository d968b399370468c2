package video

import (
	"context"
	"log/slog"
	"os"
)

// textPlacement selects where the quote block is anchored on the canvas.
type textPlacement int

const (
	placementBottom textPlacement = iota
	placementTop
)

// overlayMode controls whether the cinematic vignette is composited.
type overlayMode int

const (
	overlayNever overlayMode = iota
	overlayOptional
	overlayAlways
)

// StyleSpec declares one render variant. All variants share the same stage
// implementations; only the declarative knobs differ.
type StyleSpec struct {
	Name      string
	Media     MediaKind // KindImage or KindVideo for single-media, "" for multi-clip
	MultiClip bool
	Placement textPlacement
	TwoStep   bool // render the text layer in a separate pass first
	Fade      bool
	Captions  bool
	Overlay   overlayMode
	// SmartAspect probes the timeline geometry before the text composite and
	// fills the canvas height for tall sources, the width for wide ones.
	SmartAspect bool
}

var styleSpecs = []StyleSpec{
	{Name: "style1", Media: KindImage, Placement: placementBottom, TwoStep: true, Fade: true},
	{Name: "style2", Media: KindImage, Placement: placementBottom, Fade: true},
	{Name: "style3", Media: KindImage, Placement: placementTop, TwoStep: true, Fade: true},
	{Name: "style4", Media: KindImage, Placement: placementTop, Fade: true},
	{Name: "vid-1", Media: KindVideo, Placement: placementTop, TwoStep: true},
	{Name: "vid-1.2", MultiClip: true, Placement: placementTop},
	{Name: "vid-1.3", MultiClip: true, Placement: placementTop, Captions: true, Overlay: overlayOptional},
	{Name: "vid-1.4", MultiClip: true, Placement: placementTop, Captions: true, Overlay: overlayOptional, SmartAspect: true},
	{Name: "vid-1.5", MultiClip: true, Placement: placementTop, Captions: true, Overlay: overlayAlways},
}

// styleAliases maps the long-form endpoint names onto the short style names so
// both address the same variant.
var styleAliases = map[string]string{
	"create-video-style1": "style1",
	"create-video-style2": "style2",
	"create-video-style3": "style3",
	"create-video-style4": "style4",
	"create-video-vid-1":  "vid-1",
}

// LookupStyle resolves a style name or alias to its spec.
func LookupStyle(name string) (StyleSpec, bool) {
	if canonical, ok := styleAliases[name]; ok {
		name = canonical
	}
	for _, spec := range styleSpecs {
		if spec.Name == name {
			return spec, true
		}
	}
	return StyleSpec{}, false
}

// StyleNames lists every accepted style, canonical names only.
func StyleNames() []string {
	names := make([]string, len(styleSpecs))
	for i, spec := range styleSpecs {
		names[i] = spec.Name
	}
	return names
}

// Render executes one job and returns the path of the finished video. All
// intermediates the run produced are removed before Render returns, on both
// the success and the failure path.
func (p *Pipeline) Render(ctx context.Context, job RenderJob) (string, error) {
	spec, ok := LookupStyle(job.Style)
	if !ok {
		return "", &ValidationError{Field: "style", Msg: "unknown style " + job.Style}
	}

	r := &run{p: p, job: job}
	defer r.cleanup()

	p.logger.Info("Starting render",
		slog.String("sessionId", job.SessionID),
		slog.String("style", spec.Name))

	var out string
	var err error
	if spec.MultiClip {
		out, err = r.renderClips(ctx, spec)
	} else {
		out, err = r.renderSingleMedia(ctx, spec)
	}
	if err != nil {
		// A failed final stage must not leave a partial output behind.
		os.Remove(r.outputPath())
		p.logger.Error("Render failed",
			slog.String("sessionId", job.SessionID),
			slog.String("style", spec.Name),
			slog.String("error", err.Error()))
		return "", err
	}

	p.logger.Info("Render complete",
		slog.String("sessionId", job.SessionID),
		slog.String("output", out))
	return out, nil
}
