package video_test

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/serisow/reelforge/video"
)

// These tests run real ffmpeg drawtext commands against the escaping policy,
// so a regression in the escape order shows up as an ffmpeg parse error, not
// just a string mismatch.
func TestDrawtextEscapingAgainstFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("FFmpeg not installed, skipping test")
	}

	tempDir := t.TempDir()

	testPhrases := []string{
		"Plain text without specials",
		"It's a matter of time",
		"Ratio 16:9 and 4:3",
		"Coordinates [x1,y1] to [x2,y2]",
		"List: one, two; three",
		`Backslash \ in the middle`,
		"Expression: if(between(t,0,5),sin(2*PI*t),0)",
		"Everything at once: it's [a:b], c; d\\e",
	}

	inputFile := filepath.Join(tempDir, "input.png")
	colorCmd := exec.Command("ffmpeg", "-f", "lavfi", "-i", "color=c=black:s=1000x800:d=1", "-frames:v", "1", inputFile)
	if err := colorCmd.Run(); err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}

	for i, phrase := range testPhrases {
		t.Run(fmt.Sprintf("Phrase_%d", i), func(t *testing.T) {
			escaped := video.EscapeDrawtext(phrase)
			outputFile := filepath.Join(tempDir, fmt.Sprintf("output_%d.png", i))

			filter := fmt.Sprintf("drawtext=text='%s':fontsize=24:fontcolor=white:x=20:y=40", escaped)

			var stderr bytes.Buffer
			cmd := exec.Command("ffmpeg", "-i", inputFile, "-vf", filter, "-frames:v", "1", "-y", outputFile)
			cmd.Stderr = &stderr

			if err := cmd.Run(); err != nil {
				t.Errorf("ffmpeg rejected escaped text %q:\n%s", escaped, stderr.String())
			}
		})
	}
}

func TestTextFilterChainAgainstFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("FFmpeg not installed, skipping test")
	}

	tempDir := t.TempDir()

	inputFile := filepath.Join(tempDir, "input.png")
	colorCmd := exec.Command("ffmpeg", "-f", "lavfi", "-i", "color=c=gray:s=1080x1920:d=1", "-frames:v", "1", inputFile)
	if err := colorCmd.Run(); err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}

	// Build the same chain the render uses for a TOP-placement still, fonts
	// permitting. Skip when the bundled font path does not exist on this host.
	layout := video.ComputeLayout("A quote with: specials, and [more]", "An Author", video.CanvasWidth)
	if len(layout.Lines) == 0 {
		t.Fatal("layout produced no lines")
	}

	var stderr bytes.Buffer
	filter := fmt.Sprintf("drawtext=text='%s':fontsize=%d:fontcolor=white:x=(w-text_w)/2:y=200",
		video.EscapeDrawtext(strings.Join(layout.Lines, " ")), layout.FontSize)

	outputFile := filepath.Join(tempDir, "out.png")
	cmd := exec.Command("ffmpeg", "-i", inputFile, "-vf", filter, "-frames:v", "1", "-y", outputFile)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Errorf("ffmpeg rejected layout-driven filter:\n%s", stderr.String())
	}
}
