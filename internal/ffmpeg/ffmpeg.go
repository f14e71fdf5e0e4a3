package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os/exec"
	"time"

	"media-catalog/internal/logging"
)

// defaultTimeout bounds a single ffmpeg/ffprobe invocation.
const defaultTimeout = 30 * time.Second

// Prober extracts stream information and representative frames from
// video files using the ffprobe and ffmpeg binaries.
type Prober struct {
	timeout time.Duration
}

// New creates a Prober with the default per-invocation timeout.
func New() *Prober {
	return &Prober{timeout: defaultTimeout}
}

// NewWithTimeout creates a Prober with a custom per-invocation timeout.
func NewWithTimeout(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Prober{timeout: timeout}
}

// Available reports whether both ffmpeg and ffprobe are on PATH.
func Available() bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return false
	}
	return true
}

// probeOutput mirrors the JSON emitted by
// ffprobe -show_entries stream=width,height -of json.
type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

// Probe returns the dimensions of the first video stream of the file at
// path. A file with no video stream yields an error.
func (p *Prober) Probe(ctx context.Context, path string) (width, height int, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, 0, fmt.Errorf("ffprobe %s: %w - %s", path, err, stderr.String())
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (int, int, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return 0, 0, fmt.Errorf("no video stream in ffprobe output")
	}
	return out.Streams[0].Width, out.Streams[0].Height, nil
}

// ExtractFrame decodes one representative frame from the video at path.
// It seeks just past the start so black lead-in frames are skipped; if
// the seek fails (very short clips), it retries from the first frame.
func (p *Prober) ExtractFrame(ctx context.Context, path string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	img, err := p.runFrameGrab(ctx, path, true)
	if err == nil {
		return img, nil
	}
	logging.Debug("Seeked frame grab failed for %s: %v, retrying without seek", path, err)

	return p.runFrameGrab(ctx, path, false)
}

func (p *Prober) runFrameGrab(ctx context.Context, path string, seek bool) (image.Image, error) {
	args := []string{}
	if seek {
		args = append(args, "-ss", "00:00:00.001")
	}
	args = append(args,
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg %s: %w - %s", path, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode ffmpeg output for %s: %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes a still image through ffmpeg. Used as a last
// resort for formats the registered Go decoders cannot handle.
func (p *Prober) DecodeImage(ctx context.Context, path string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-pix_fmt", "rgb24",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg %s: %w - %s", path, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode ffmpeg output for %s: %w", path, err)
	}
	return img, nil
}
