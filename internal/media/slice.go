package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Slicer carves a time-bounded slice out of a media buffer.
type Slicer interface {
	Slice(ctx context.Context, in *Input, start, end float64) (*Input, error)
}

// Prober detects the duration of a media buffer in seconds.
type Prober interface {
	Probe(ctx context.Context, in *Input) (float64, error)
}

// FFmpeg shells out to ffmpeg/ffprobe for slicing and duration probing.
// Buffers are staged through a temp file because ffmpeg seeks the container.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	TmpDir      string
}

// NewFFmpeg creates an FFmpeg slicer/prober with default binary names.
func NewFFmpeg(tmpDir string) *FFmpeg {
	return &FFmpeg{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		TmpDir:      tmpDir,
	}
}

// Slice extracts [start, end) seconds into a new buffer with the same
// container format. The temp file is removed on every exit path.
func (f *FFmpeg) Slice(ctx context.Context, in *Input, start, end float64) (*Input, error) {
	src, cleanup, err := f.stage(in)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out := src + ".slice" + filepath.Ext(src)
	defer os.Remove(out)

	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-y",
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-i", src,
		"-c", "copy",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg slice: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read slice: %w", err)
	}

	name := fmt.Sprintf("%s[%s-%s]", in.Name, formatSeconds(start), formatSeconds(end))
	slice := NewInput(data, in.MIME, name)
	slice.Duration = end - start
	return slice, nil
}

// Probe returns the media duration via ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, in *Input) (float64, error) {
	src, cleanup, err := f.stage(in)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src,
	)
	outBytes, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(outBytes)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration: %w", err)
	}
	return duration, nil
}

// stage writes the buffer to a temp file and returns its path and cleanup.
func (f *FFmpeg) stage(in *Input) (string, func(), error) {
	dir := f.TmpDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmp, err := os.CreateTemp(dir, "scribe-*"+extensionFor(in))
	if err != nil {
		return "", nil, fmt.Errorf("create temp media file: %w", err)
	}
	if _, err := tmp.Write(in.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("write temp media file: %w", err)
	}
	tmp.Close()
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

func extensionFor(in *Input) string {
	if ext := filepath.Ext(in.Name); ext != "" {
		return ext
	}
	for ext, mime := range extensionMIMEs {
		if mime == normalizeMIME(in.MIME) {
			return ext
		}
	}
	return ".bin"
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
