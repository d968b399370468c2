package video

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Pipeline orchestrates the stage sequence for one render: resolve sources,
// transform intermediates in the temp directory, and land the result in the
// output directory. Every intermediate is tracked and removed when the run
// ends, whether it succeeded or not.
type Pipeline struct {
	logger    *slog.Logger
	ffmpeg    *FFmpeg
	resolver  *Resolver
	tempDir   string
	outputDir string
	assetsDir string
	defaults  Defaults
}

func NewPipeline(logger *slog.Logger, ffmpeg *FFmpeg, resolver *Resolver, tempDir, outputDir, assetsDir string, defaults Defaults) *Pipeline {
	return &Pipeline{
		logger:    logger,
		ffmpeg:    ffmpeg,
		resolver:  resolver,
		tempDir:   tempDir,
		outputDir: outputDir,
		assetsDir: assetsDir,
		defaults:  defaults,
	}
}

// run carries the per-job state: the job itself and the ledger of files this
// run created. Intermediates are named with the session id prefix so
// concurrent runs never collide and orphans remain attributable.
type run struct {
	p       *Pipeline
	job     RenderJob
	created []string
}

func (r *run) tempPath(label string) string {
	path := filepath.Join(r.p.tempDir, r.job.SessionID+"-"+label)
	r.track(path)
	return path
}

func (r *run) track(path string) {
	r.created = append(r.created, path)
}

// cleanup removes every tracked intermediate. Removal failures are logged and
// swallowed; the retention sweeper picks up anything left behind.
func (r *run) cleanup() {
	for _, path := range r.created {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.p.logger.Warn("Failed to remove intermediate file",
				slog.String("sessionId", r.job.SessionID),
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
}

// resolveAudio materializes the job's audio source as a local file and probes
// its duration. Exactly one of the three source fields is honored, in order:
// uploaded path, direct URL, social post URL.
func (r *run) resolveAudio(ctx context.Context) (string, float64, error) {
	var path string
	var err error

	switch {
	case r.job.Audio.Path != "":
		path = r.job.Audio.Path
		if _, statErr := os.Stat(path); statErr != nil {
			return "", 0, &SourceNotFoundError{Ref: path, Err: statErr}
		}
	case r.job.Audio.URL != "":
		path, err = r.p.resolver.Resolve(ctx, r.job.Audio.URL, KindAudio, r.tempPath("audio.mp3"))
		if err != nil {
			return "", 0, err
		}
	case r.job.Audio.SocialURL != "":
		path, err = r.p.resolver.ExtractSocialAudio(ctx, r.job.Audio.SocialURL, r.tempPath("social-audio"))
		if err != nil {
			return "", 0, err
		}
		r.track(path)
	default:
		return "", 0, &ValidationError{Field: "audio", Msg: "an audio file, audioUrl or socialUrl is required"}
	}

	duration, err := r.p.ffmpeg.AudioDuration(ctx, path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to probe audio duration: %w", err)
	}

	r.p.logger.Info("Audio resolved",
		slog.String("sessionId", r.job.SessionID),
		slog.String("path", path),
		slog.Float64("duration", duration))

	return path, duration, nil
}

// resolveClipSource materializes one clip's media reference into the temp dir.
func (r *run) resolveClipSource(ctx context.Context, index int, src ClipSource) (string, error) {
	ext := ".mp4"
	if src.Kind == KindImage {
		ext = filepath.Ext(src.Ref)
		if ext == "" || len(ext) > 5 {
			ext = ".jpg"
		}
	}
	dest := r.tempPath(fmt.Sprintf("clip%d-src%s", index, ext))
	path, err := r.p.resolver.Resolve(ctx, src.Ref, src.Kind, dest)
	if err != nil {
		return "", fmt.Errorf("clip %d: %w", index+1, err)
	}
	return path, nil
}

// convertImageToVideo loops a still into a fixed-duration normalized clip.
func (r *run) convertImageToVideo(ctx context.Context, imagePath string, duration float64, out string) error {
	return r.p.ffmpeg.Transform(ctx, "convert_image", out, []string{
		"-loop", "1",
		"-i", imagePath,
		"-t", formatSeconds(duration),
		"-r", "30",
		"-vf", normalizeChain(),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-y", out,
	})
}

// extractClipSegment trims a video clip at its in-source offset and re-encodes
// for frame-accurate boundaries. A volume percentage other than 100 scales the
// clip's own audio before any later mixing.
func (r *run) extractClipSegment(ctx context.Context, clip Clip, srcPath, out string) error {
	args := []string{
		"-ss", formatSeconds(clip.Begin),
		"-i", srcPath,
		"-t", formatSeconds(clip.Duration),
		"-avoid_negative_ts", "make_zero",
		"-c:v", "libx264",
		"-preset", "fast",
		"-c:a", "aac",
	}
	if clip.Volume > 0 && clip.Volume != 100 {
		args = append(args, "-af", fmt.Sprintf("volume=%g", clip.Volume/100))
	}
	args = append(args, "-y", out)
	return r.p.ffmpeg.Transform(ctx, "extract_segment", out, args)
}

// concatenateClips joins the prepared segments into one normalized timeline.
// A single segment still goes through a full normalization re-encode so that
// every later stage sees identical geometry regardless of clip count. Audio is
// carried through only when every segment has a track; otherwise the timeline
// is video-only and the external audio becomes the sole soundtrack.
func (r *run) concatenateClips(ctx context.Context, segments []string, out string) error {
	if len(segments) == 1 {
		return r.p.ffmpeg.Transform(ctx, "concatenate", out, []string{
			"-i", segments[0],
			"-vf", normalizeChain() + ",fps=30",
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-c:a", "aac",
			"-y", out,
		})
	}

	withAudio := true
	for _, seg := range segments {
		has, err := r.p.ffmpeg.HasAudioStream(ctx, seg)
		if err != nil {
			return err
		}
		if !has {
			withAudio = false
			break
		}
	}

	args := make([]string, 0, len(segments)*2+12)
	for _, seg := range segments {
		args = append(args, "-i", seg)
	}
	if withAudio {
		args = append(args,
			"-filter_complex", concatGraphWithAudio(len(segments)),
			"-map", "[outv]",
			"-map", "[outa]",
			"-c:a", "aac",
		)
	} else {
		args = append(args,
			"-filter_complex", concatGraph(len(segments)),
			"-map", "[outv]",
		)
	}
	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-y", out,
	)
	return r.p.ffmpeg.Transform(ctx, "concatenate", out, args)
}

// applyOverlay composites the cinematic vignette over the timeline. A missing
// mask asset downgrades to a logged passthrough instead of failing the job.
func (r *run) applyOverlay(ctx context.Context, in string) (string, error) {
	mask := filepath.Join(r.p.assetsDir, "overlay.png")
	if _, err := os.Stat(mask); err != nil {
		r.p.logger.Warn("Overlay mask not found, skipping overlay",
			slog.String("sessionId", r.job.SessionID),
			slog.String("mask", mask))
		return in, nil
	}

	out := r.tempPath("overlaid.mp4")
	err := r.p.ffmpeg.Transform(ctx, "apply_overlay", out, []string{
		"-i", in,
		"-i", mask,
		"-filter_complex", overlayGraph(),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-y", out,
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// applyTextFilters burns the drawtext layers into the timeline. An empty
// filter list is a passthrough; ffmpeg rejects an empty -vf argument.
func (r *run) applyTextFilters(ctx context.Context, in string, filters []string) (string, error) {
	expr := joinFilters(filters)
	if expr == "" {
		return in, nil
	}

	out := r.tempPath("texted.mp4")
	err := r.p.ffmpeg.Transform(ctx, "apply_text", out, []string{
		"-i", in,
		"-vf", expr,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-y", out,
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// muxAudio attaches the external soundtrack and trims the result to the final
// duration. When the video side already carries audio the two tracks are mixed
// with the video's track leading; otherwise the external track is attached as
// the only one.
func (r *run) muxAudio(ctx context.Context, videoPath, audioPath string, duration float64, out string) error {
	hasAudio, err := r.p.ffmpeg.HasAudioStream(ctx, videoPath)
	if err != nil {
		return err
	}

	args := []string{
		"-i", videoPath,
		"-i", audioPath,
	}
	if hasAudio {
		args = append(args,
			"-filter_complex", amixGraph(),
			"-c:v", "copy",
		)
	} else {
		args = append(args,
			"-map", "0:v",
			"-map", "1:a",
			"-c:v", "copy",
			"-c:a", "aac",
		)
	}
	args = append(args,
		"-b:a", "192k",
		"-t", formatSeconds(duration),
		"-y", out,
	)
	return r.p.ffmpeg.Transform(ctx, "mux_audio", out, args)
}

// generateStillWithText renders the scaled, padded canvas with the text burnt
// in as a single frame. The two-step image styles loop this frame afterwards
// so drawtext runs once instead of once per output frame.
func (r *run) generateStillWithText(ctx context.Context, imagePath string, filters []string, out string) error {
	return r.p.ffmpeg.Transform(ctx, "generate_still", out, []string{
		"-i", imagePath,
		"-vf", joinFilters(filters),
		"-frames:v", "1",
		"-y", out,
	})
}

// outputPath is where the finished render lands; it is never tracked for
// cleanup, the retention sweeper owns its lifetime.
func (r *run) outputPath() string {
	return filepath.Join(r.p.outputDir, r.job.SessionID+".mp4")
}

// singleMediaFilters builds the scale/pad plus text chain for the one-media
// styles according to text placement.
func singleMediaFilters(text TextConfig, placement textPlacement) []string {
	if placement == placementTop {
		layout := ComputeLayout(text.Quote, text.Author, CanvasWidth)
		group := placeGroup(layout)
		filters := []string{scalePadGrouped(group.MediaHeight, group.MediaStartY)}
		return append(filters, topTextFilters(text, layout, group.TextStartY)...)
	}
	filters := []string{scalePadFull()}
	return append(filters, bottomTextFilters(text)...)
}

// renderSingleMedia drives the image and single-video styles.
func (r *run) renderSingleMedia(ctx context.Context, spec StyleSpec) (string, error) {
	if r.job.Media == nil || r.job.Media.Ref == "" {
		return "", &ValidationError{Field: string(spec.Media), Msg: "a media file or URL is required"}
	}

	audioPath, audioDur, err := r.resolveAudio(ctx)
	if err != nil {
		return "", err
	}
	duration := finalDuration(audioDur, r.job.MaxDuration)

	ext := filepath.Ext(r.job.Media.Ref)
	if ext == "" || len(ext) > 5 {
		if spec.Media == KindImage {
			ext = ".jpg"
		} else {
			ext = ".mp4"
		}
	}
	mediaPath, err := r.p.resolver.Resolve(ctx, r.job.Media.Ref, spec.Media, r.tempPath("source"+ext))
	if err != nil {
		return "", err
	}

	filters := singleMediaFilters(r.job.Text, spec.Placement)
	out := r.outputPath()

	var fadeDur float64
	if spec.Fade {
		fadeDur = duration * r.p.defaults.FadeInRatio
	}

	if spec.Media == KindImage {
		if spec.TwoStep {
			still := r.tempPath("still.png")
			if err := r.generateStillWithText(ctx, mediaPath, filters, still); err != nil {
				return "", err
			}
			return out, r.renderLoopedStill(ctx, still, audioPath, duration, fadeDur, nil, out)
		}
		return out, r.renderLoopedStill(ctx, mediaPath, audioPath, duration, fadeDur, filters, out)
	}

	// Single-video style: burn text into a silent intermediate, then mux.
	silent := r.tempPath("silent.mp4")
	videoFilters := filters
	if spec.Fade {
		videoFilters = insertFadeAfterPad(videoFilters, fadeDur)
	}
	err = r.p.ffmpeg.Transform(ctx, "render_video", silent, []string{
		"-i", mediaPath,
		"-t", formatSeconds(duration),
		"-an",
		"-vf", joinFilters(videoFilters),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", "30",
		"-y", silent,
	})
	if err != nil {
		return "", err
	}
	return out, r.muxAudio(ctx, silent, audioPath, duration, out)
}

// renderLoopedStill loops a still into the final video with the soundtrack
// attached, applying the optional extra filters and fade in one encode.
func (r *run) renderLoopedStill(ctx context.Context, imagePath, audioPath string, duration, fadeDur float64, extraFilters []string, out string) error {
	videoFilters := append([]string{}, extraFilters...)
	if len(videoFilters) == 0 {
		videoFilters = append(videoFilters, scalePadFull())
	}
	if fadeDur > 0 {
		videoFilters = insertFadeAfterPad(videoFilters, fadeDur)
	}

	args := []string{
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-t", formatSeconds(duration),
		"-r", "30",
		"-vf", joinFilters(videoFilters),
	}
	if fadeDur > 0 {
		args = append(args, "-af", fadeInAudio(fadeDur))
	}
	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		"-y", out,
	)
	return r.p.ffmpeg.Transform(ctx, "render_video", out, args)
}

// renderClips drives the multi-clip styles: resolve, prepare, concatenate,
// overlay, text, mux.
func (r *run) renderClips(ctx context.Context, spec StyleSpec) (string, error) {
	if len(r.job.Clips) == 0 {
		return "", &ValidationError{Field: "clips", Msg: "must be a non-empty array"}
	}

	audioPath, audioDur, err := r.resolveAudio(ctx)
	if err != nil {
		return "", err
	}

	reconciled := ReconcileDurations(r.job.Clips, audioDur, r.job.MaxDuration, r.p.defaults, r.p.logger)

	r.p.logger.Info("Durations reconciled",
		slog.String("sessionId", r.job.SessionID),
		slog.Int("clips", len(reconciled.Clips)),
		slog.Float64("totalVideo", reconciled.TotalVideoDuration),
		slog.Float64("final", reconciled.FinalDuration))

	segments := make([]string, 0, len(reconciled.Clips))
	for i, clip := range reconciled.Clips {
		srcPath, err := r.resolveClipSource(ctx, i, clip.Source)
		if err != nil {
			return "", err
		}

		segment := r.tempPath(fmt.Sprintf("clip%d.mp4", i))
		if clip.Source.Kind == KindImage {
			err = r.convertImageToVideo(ctx, srcPath, clip.Duration, segment)
		} else {
			err = r.extractClipSegment(ctx, clip, srcPath, segment)
		}
		if err != nil {
			return "", err
		}
		segments = append(segments, segment)
	}

	timeline := r.tempPath("timeline.mp4")
	if err := r.concatenateClips(ctx, segments, timeline); err != nil {
		return "", err
	}

	current := timeline
	if spec.Overlay == overlayAlways || (spec.Overlay == overlayOptional && r.job.Overlay) {
		current, err = r.applyOverlay(ctx, current)
		if err != nil {
			return "", err
		}
	}

	var filters []string
	if strings.TrimSpace(r.job.Text.Quote) != "" || strings.TrimSpace(r.job.Text.Author) != "" {
		layout := ComputeLayout(r.job.Text.Quote, r.job.Text.Author, CanvasWidth)
		group := placeGroup(layout)
		filters = append(filters, topTextFilters(r.job.Text, layout, group.TextStartY)...)
	} else if strings.TrimSpace(r.job.Text.Watermark) != "" {
		filters = append(filters, watermarkFilter(r.job.Text.Watermark))
	}
	if spec.Captions {
		filters = append(filters, captionFilters(r.job.Captions)...)
	}
	if spec.SmartAspect {
		width, height, err := r.p.ffmpeg.Dimensions(ctx, current)
		if err != nil {
			return "", err
		}
		filters = append([]string{smartScale(width, height)}, filters...)
	}

	current, err = r.applyTextFilters(ctx, current, filters)
	if err != nil {
		return "", err
	}

	out := r.outputPath()
	return out, r.muxAudio(ctx, current, audioPath, reconciled.FinalDuration, out)
}
