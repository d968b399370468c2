package video

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Resolver turns a clip or audio reference (local path, direct URL, or
// social-media URL) into a concrete local file. Callers are guaranteed either
// a complete file at the returned path or an error, never a partial file.
type Resolver struct {
	logger          *slog.Logger
	client          *http.Client
	ffmpeg          *FFmpeg
	runner          Runner
	ytdlpBin        string
	strategyTimeout time.Duration
}

func NewResolver(logger *slog.Logger, ffmpeg *FFmpeg, runner Runner, ytdlpBin string, strategyTimeout time.Duration) *Resolver {
	return &Resolver{
		logger:          logger,
		client:          &http.Client{Timeout: 60 * time.Second},
		ffmpeg:          ffmpeg,
		runner:          runner,
		ytdlpBin:        ytdlpBin,
		strategyTimeout: strategyTimeout,
	}
}

func isRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Resolve materializes ref as a local file. Remote videos are fetched through
// ffmpeg with stream copy because some sources need protocol handling a plain
// HTTP client does not provide; everything else is a streamed GET. Local paths
// are returned as-is after an existence check.
func (r *Resolver) Resolve(ctx context.Context, ref string, kind MediaKind, dest string) (string, error) {
	if ref == "" {
		return "", &ValidationError{Field: string(kind), Msg: "source reference is required"}
	}

	if isRemoteRef(ref) {
		if kind == KindVideo {
			if err := r.fetchVideo(ctx, ref, dest); err != nil {
				return "", err
			}
		} else {
			if err := r.download(ctx, ref, dest); err != nil {
				return "", err
			}
		}
		return dest, nil
	}

	if _, err := os.Stat(ref); err == nil {
		return ref, nil
	}

	return "", &SourceNotFoundError{Ref: ref}
}

// download streams a GET response to disk. The body lands in a .part file
// that is renamed only once fully written, so a failed transfer never leaves
// a corrupt file at the destination path.
func (r *Resolver) download(ctx context.Context, fileURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return &SourceNotFoundError{Ref: fileURL, Err: err}
	}

	r.logger.Debug("Downloading file", slog.String("url", fileURL), slog.String("to", dest))

	resp, err := r.client.Do(req)
	if err != nil {
		return &SourceNotFoundError{Ref: fileURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &SourceNotFoundError{Ref: fileURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	partial := dest + ".part"
	file, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(partial)
		return &SourceNotFoundError{Ref: fileURL, Err: err}
	}
	if err := file.Close(); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to finish download: %w", err)
	}

	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to finalize download: %w", err)
	}
	return nil
}

// fetchVideo re-containerizes a remote video to disk with stream copy, no
// re-encode.
func (r *Resolver) fetchVideo(ctx context.Context, videoURL, dest string) error {
	err := r.ffmpeg.Transform(ctx, "fetch_video", dest, []string{
		"-i", videoURL,
		"-c", "copy",
		"-y", dest,
	})
	if err != nil {
		return &SourceNotFoundError{Ref: videoURL, Err: err}
	}
	return nil
}

type extractionStrategy struct {
	name string
	args []string // nil means the page-scrape strategy
}

// extractionStrategies builds the ordered fallback chain for one URL. The
// yt-dlp attempts differ only in which browser cookie jar they borrow; the
// final attempt scrapes the post page for an og: media URL directly.
func (r *Resolver) extractionStrategies(postURL, outBase string) []extractionStrategy {
	base := []string{"-x", "--audio-format", "mp3", "--audio-quality", "0", "-o", outBase}
	return []extractionStrategy{
		{name: "chrome cookies", args: append(append([]string{}, base...), "--cookies-from-browser", "chrome", postURL)},
		{name: "edge cookies", args: append(append([]string{}, base...), "--cookies-from-browser", "edge", postURL)},
		{name: "no cookies", args: append(append([]string{}, base...), postURL)},
		{name: "page scrape", args: nil},
	}
}

// ExtractSocialAudio runs the fallback chain until one strategy produces an
// audio file. Per-strategy failures are absorbed and collected; only when the
// whole chain is exhausted does an aggregate error surface. Each attempt runs
// under its own timeout so one hung extractor cannot stall the job.
func (r *Resolver) ExtractSocialAudio(ctx context.Context, postURL, outBase string) (string, error) {
	if !isRemoteRef(postURL) {
		return "", &ValidationError{Field: "socialUrl", Msg: "must be an http(s) URL"}
	}

	var failures []StrategyFailure

	for _, strategy := range r.extractionStrategies(postURL, outBase) {
		r.logger.Info("Trying extraction strategy",
			slog.String("strategy", strategy.name),
			slog.String("url", postURL))

		attemptCtx, cancel := context.WithTimeout(ctx, r.strategyTimeout)
		path, err := r.tryStrategy(attemptCtx, strategy, postURL, outBase)
		cancel()

		if err == nil {
			r.logger.Info("Extraction succeeded",
				slog.String("strategy", strategy.name),
				slog.String("path", path))
			return path, nil
		}

		r.logger.Debug("Extraction strategy failed",
			slog.String("strategy", strategy.name),
			slog.String("error", err.Error()))
		failures = append(failures, StrategyFailure{Strategy: strategy.name, Reason: err.Error()})
	}

	return "", &ExtractionExhaustedError{URL: postURL, Failures: failures}
}

func (r *Resolver) tryStrategy(ctx context.Context, strategy extractionStrategy, postURL, outBase string) (string, error) {
	if strategy.args == nil {
		return r.scrapeAndTranscode(ctx, postURL, outBase)
	}

	if err := r.runner.Run(ctx, "extract_audio", r.ytdlpBin, strategy.args); err != nil {
		return "", err
	}
	return r.locateExtracted(ctx, outBase)
}

// locateExtracted probes the possible output names the extractor may have
// chosen; its naming is not fully predictable. A hit that is not already mp3
// gets transcoded before being returned.
func (r *Resolver) locateExtracted(ctx context.Context, outBase string) (string, error) {
	stripped := strings.TrimSuffix(outBase, filepath.Ext(outBase))
	candidates := []string{outBase + ".mp3", outBase, stripped + ".mp3"}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Size() > 0 {
			if filepath.Ext(candidate) == ".mp3" {
				return candidate, nil
			}
			return r.transcodeToMP3(ctx, candidate, stripped+".mp3")
		}
	}
	return "", fmt.Errorf("audio file not found after extraction")
}

func (r *Resolver) transcodeToMP3(ctx context.Context, src, dest string) (string, error) {
	err := r.ffmpeg.Transform(ctx, "transcode_audio", dest, []string{
		"-i", src,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "0",
		"-y", dest,
	})
	if err != nil {
		return "", err
	}
	os.Remove(src)
	return dest, nil
}

// scrapeAndTranscode fetches the post page and reads the og: media tags for a
// direct media URL, then pulls the audio track out of it.
func (r *Resolver) scrapeAndTranscode(ctx context.Context, postURL, outBase string) (string, error) {
	mediaURL, err := r.scrapeMediaURL(ctx, postURL)
	if err != nil {
		return "", err
	}

	dest := strings.TrimSuffix(outBase, filepath.Ext(outBase)) + ".mp3"
	err = r.ffmpeg.Transform(ctx, "extract_audio", dest, []string{
		"-i", mediaURL,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "0",
		"-y", dest,
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

func (r *Resolver) scrapeMediaURL(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; reelforge/1.0)")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page fetch returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	for _, property := range []string{"og:audio", "og:video:secure_url", "og:video"} {
		selector := fmt.Sprintf(`meta[property=%q]`, property)
		if content, ok := doc.Find(selector).First().Attr("content"); ok && content != "" {
			return content, nil
		}
	}
	return "", fmt.Errorf("no og: media tags found on page")
}
