// Package video provides ffmpeg-backed frame sources and a sink for runs
// without a window.
package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os/exec"

	"github.com/andresmejia3/visage/internal/utils"
)

const megabyte = 1024 * 1024

// MJPEGReader decodes a stream of concatenated JPEG images.
type MJPEGReader struct {
	scanner *bufio.Scanner
}

// NewMJPEGReader splits r on JPEG start/end markers.
func NewMJPEGReader(r io.Reader) *MJPEGReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)
	return &MJPEGReader{scanner: scanner}
}

// Read decodes the next image. ok is false once the stream is exhausted.
func (m *MJPEGReader) Read(ctx context.Context) (image.Image, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if !m.scanner.Scan() {
		if err := m.scanner.Err(); err != nil {
			return nil, false, fmt.Errorf("frame scanner failed: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	img, err := jpeg.Decode(bytes.NewReader(m.scanner.Bytes()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, true, nil
}

// FFmpegSource decodes any input ffmpeg understands into frames.
type FFmpegSource struct {
	*MJPEGReader
	cmd    *exec.Cmd
	out    io.ReadCloser
	stderr bytes.Buffer
}

// OpenFFmpeg starts ffmpeg on input. inputArgs select a demuxer, e.g.
// "-f", "v4l2" for a Linux camera.
func OpenFFmpeg(ctx context.Context, input string, inputArgs ...string) (*FFmpegSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	s := &FFmpegSource{cmd: utils.NewFFmpegCmd(ctx, input, inputArgs...)}
	s.cmd.Stderr = &s.stderr

	out, err := s.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create FFmpeg stdout pipe: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start FFmpeg: %w", err)
	}
	s.out = out
	s.MJPEGReader = NewMJPEGReader(out)
	return s, nil
}

// Close stops ffmpeg. An ffmpeg failure is reported with its logs.
func (s *FFmpegSource) Close() error {
	s.out.Close()
	if s.cmd.ProcessState == nil {
		s.cmd.Process.Kill()
	}
	err := s.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && !exitErr.Exited() {
		// Killed by us or by the context.
		return nil
	}
	if err != nil && s.stderr.Len() > 0 {
		return fmt.Errorf("ffmpeg failed: %w\n%s", err, s.stderr.String())
	}
	return err
}
