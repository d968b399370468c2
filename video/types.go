package video

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MediaKind discriminates what a reference points at.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

// ClipSource is the normalized form of the clip reference aliases accepted on
// the wire (imageurl, videourl, videoUrl). After normalization nothing
// downstream branches on field presence again.
type ClipSource struct {
	Kind MediaKind
	Ref  string
}

// Clip is one segment of a multi-clip timeline.
//
// Start places the clip on the timeline and only feeds gap-based duration
// calculation; Begin is the in-source trim offset handed to the extract stage.
type Clip struct {
	Source   ClipSource
	Start    float64
	Begin    float64
	Duration float64
	Volume   float64 // percent, 100 = unchanged; 0 means unspecified
}

// Caption is a timed text annotation. Captions appear and disappear at hard
// boundaries, they never fade.
type Caption struct {
	Text     string
	Start    float64
	Duration float64
}

// TextConfig carries the static overlay text. Empty fields mean the layer is
// omitted entirely.
type TextConfig struct {
	Quote     string
	Author    string
	Watermark string
}

// AudioSpec names exactly one audio source: an already-local uploaded file, a
// direct URL, or a social-media post URL that needs the extraction chain.
type AudioSpec struct {
	Path      string
	URL       string
	SocialURL string
}

func (a AudioSpec) empty() bool {
	return a.Path == "" && a.URL == "" && a.SocialURL == ""
}

// RenderJob is one request's worth of render state. It is created at request
// entry, consumed by a single pipeline run and never persisted.
type RenderJob struct {
	SessionID   string
	Style       string
	Text        TextConfig
	Media       *ClipSource // single-media styles
	Clips       []Clip      // multi-clip styles
	Captions    []Caption
	Audio       AudioSpec
	MaxDuration float64 // seconds, 0 = no user cap
	Overlay     bool
}

type clipWire struct {
	ImageURL    string   `json:"imageurl"`
	VideoURL    string   `json:"videourl"`
	VideoURLAlt string   `json:"videoUrl"`
	Start       *float64 `json:"start"`
	Begin       *float64 `json:"begin"`
	Duration    *float64 `json:"duration"`
	Volume      *float64 `json:"volume"`
}

// ParseClips decodes the clips JSON field and normalizes the source aliases.
// An image reference wins over a video reference when both are present.
func ParseClips(raw string) ([]Clip, error) {
	var wire []clipWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, &ValidationError{Field: "clips", Msg: "invalid JSON, expected an array of clips"}
	}
	if len(wire) == 0 {
		return nil, &ValidationError{Field: "clips", Msg: "must be a non-empty array"}
	}

	clips := make([]Clip, 0, len(wire))
	for i, w := range wire {
		var src ClipSource
		switch {
		case strings.TrimSpace(w.ImageURL) != "":
			src = ClipSource{Kind: KindImage, Ref: strings.TrimSpace(w.ImageURL)}
		case strings.TrimSpace(w.VideoURL) != "":
			src = ClipSource{Kind: KindVideo, Ref: strings.TrimSpace(w.VideoURL)}
		case strings.TrimSpace(w.VideoURLAlt) != "":
			src = ClipSource{Kind: KindVideo, Ref: strings.TrimSpace(w.VideoURLAlt)}
		default:
			return nil, &ValidationError{
				Field: "clips",
				Msg:   fmt.Sprintf("clip %d must have either an imageurl or a videourl", i+1),
			}
		}

		c := Clip{Source: src}
		if w.Start != nil {
			c.Start = *w.Start
		}
		if w.Begin != nil {
			c.Begin = *w.Begin
		}
		if c.Begin < 0 {
			return nil, &ValidationError{
				Field: "clips",
				Msg:   fmt.Sprintf("clip %d has a negative begin offset", i+1),
			}
		}
		if w.Duration != nil {
			c.Duration = *w.Duration
		}
		if w.Volume != nil {
			c.Volume = *w.Volume
		}
		clips = append(clips, c)
	}
	return clips, nil
}

type captionWire struct {
	Text     string   `json:"text"`
	Start    *float64 `json:"start"`
	Duration *float64 `json:"duration"`
}

// ParseCaptions decodes the captions JSON field. Captions without a duration
// default to three seconds on screen.
func ParseCaptions(raw string) ([]Caption, error) {
	var wire []captionWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, &ValidationError{Field: "captions", Msg: "invalid JSON, expected an array of captions"}
	}

	captions := make([]Caption, 0, len(wire))
	for _, w := range wire {
		c := Caption{Text: w.Text, Duration: 3}
		if w.Start != nil {
			c.Start = *w.Start
		}
		if w.Duration != nil {
			c.Duration = *w.Duration
		}
		captions = append(captions, c)
	}
	return captions, nil
}

// Defaults is the single source of truth for the timing constants that used to
// be scattered across the style variants.
type Defaults struct {
	ImageClipSeconds float64
	VideoClipSeconds float64
	FadeInRatio      float64
}

// StandardDefaults returns the historical per-type clip durations and fade
// ratio used when no configuration overrides them.
func StandardDefaults() Defaults {
	return Defaults{
		ImageClipSeconds: 4,
		VideoClipSeconds: 5,
		FadeInRatio:      0.75,
	}
}

func (d Defaults) clipDefault(kind MediaKind) float64 {
	if kind == KindImage {
		return d.ImageClipSeconds
	}
	return d.VideoClipSeconds
}
