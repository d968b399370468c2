package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// stderrCap bounds how much diagnostic output a failed stage may carry into
// its error report.
const stderrCap = 64 * 1024

// Runner executes one external process per call. Stages always pass discrete
// argument arrays, never a shell string.
type Runner interface {
	Run(ctx context.Context, stage, bin string, args []string) error
	Output(ctx context.Context, stage, bin string, args []string) ([]byte, error)
}

// ExecRunner runs commands through os/exec with a per-invocation timeout that
// kills the process and fails the stage cleanly.
type ExecRunner struct {
	logger  *slog.Logger
	timeout time.Duration
}

func NewExecRunner(logger *slog.Logger, timeout time.Duration) *ExecRunner {
	return &ExecRunner{logger: logger, timeout: timeout}
}

type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string { return b.buf.String() }

func (r *ExecRunner) Run(ctx context.Context, stage, bin string, args []string) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	stderr := &boundedBuffer{limit: stderrCap}
	cmd.Stderr = stderr

	r.logger.Debug("Executing external process",
		slog.String("stage", stage),
		slog.String("bin", bin),
		slog.Any("args", args))

	if err := cmd.Run(); err != nil {
		r.logger.Error("External process failed",
			slog.String("stage", stage),
			slog.String("error", err.Error()),
			slog.String("stderr", stderr.String()))
		return &StageError{Stage: stage, Stderr: stderr.String(), Err: err}
	}
	return nil
}

func (r *ExecRunner) Output(ctx context.Context, stage, bin string, args []string) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	stderr := &boundedBuffer{limit: stderrCap}
	cmd.Stderr = stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, &StageError{Stage: stage, Stderr: stderr.String(), Err: err}
	}
	return out, nil
}

// FFmpeg wraps the media tool and its probe companion behind stage-shaped
// calls.
type FFmpeg struct {
	runner     Runner
	ffmpegBin  string
	ffprobeBin string
	logger     *slog.Logger
}

func NewFFmpeg(runner Runner, ffmpegBin, ffprobeBin string, logger *slog.Logger) *FFmpeg {
	return &FFmpeg{
		runner:     runner,
		ffmpegBin:  ffmpegBin,
		ffprobeBin: ffprobeBin,
		logger:     logger,
	}
}

// Transform runs one ffmpeg invocation and verifies the expected output file
// exists afterwards. Exit code 0 with a missing file means a tool mismatch and
// surfaces as FilesystemError rather than silent corruption downstream.
func (f *FFmpeg) Transform(ctx context.Context, stage, expectedOutput string, args []string) error {
	if err := f.runner.Run(ctx, stage, f.ffmpegBin, args); err != nil {
		return err
	}
	if expectedOutput != "" {
		if _, err := os.Stat(expectedOutput); os.IsNotExist(err) {
			return &FilesystemError{Stage: stage, Path: expectedOutput}
		}
	}
	return nil
}

// AudioDuration probes a media file's container duration in seconds.
func (f *FFmpeg) AudioDuration(ctx context.Context, path string) (float64, error) {
	out, err := f.runner.Output(ctx, "probe_audio_duration", f.ffprobeBin, []string{
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	})
	if err != nil {
		return 0, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return duration, nil
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type probeReport struct {
	Streams []probeStream `json:"streams"`
}

// Dimensions returns the width and height of the first video stream.
func (f *FFmpeg) Dimensions(ctx context.Context, path string) (int, int, error) {
	out, err := f.runner.Output(ctx, "probe_dimensions", f.ffprobeBin, []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		path,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	var report probeReport
	if err := json.Unmarshal(out, &report); err != nil {
		return 0, 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	for _, s := range report.Streams {
		if s.CodecType == "video" {
			return s.Width, s.Height, nil
		}
	}
	return 0, 0, fmt.Errorf("no video stream found in %s", path)
}

// HasAudioStream reports whether the file carries at least one audio track.
func (f *FFmpeg) HasAudioStream(ctx context.Context, path string) (bool, error) {
	out, err := f.runner.Output(ctx, "probe_audio_stream", f.ffprobeBin, []string{
		"-v", "quiet",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		path,
	})
	if err != nil {
		return false, fmt.Errorf("ffprobe execution failed: %w", err)
	}
	return strings.Contains(string(out), "audio"), nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
