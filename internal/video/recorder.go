package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"

	"github.com/andresmejia3/visage/internal/utils"
)

// Recorder encodes frames to a video file with ffmpeg. The encoder starts on
// the first frame, whose size fixes the size of the video.
type Recorder struct {
	ctx  context.Context
	path string
	fps  float64

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	size   image.Point
	buf    *image.RGBA
}

// NewRecorder prepares a recording to path at fps frames per second.
func NewRecorder(ctx context.Context, path string, fps float64) *Recorder {
	if fps <= 0 {
		fps = 30
	}
	return &Recorder{ctx: ctx, path: path, fps: fps}
}

func (r *Recorder) start(size image.Point) error {
	r.cmd = utils.NewFFmpegEncoder(r.ctx, r.path, r.fps, size.X, size.Y)
	r.cmd.Stderr = &r.stderr
	stdin, err := r.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create encoder stdin: %w", err)
	}
	if err := r.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}
	r.stdin = stdin
	r.size = size
	r.buf = image.NewRGBA(image.Rectangle{Max: size})
	return nil
}

// Write appends one frame.
func (r *Recorder) Write(frame image.Image) error {
	size := frame.Bounds().Size()
	if r.cmd == nil {
		if err := r.start(size); err != nil {
			return err
		}
	}
	if size != r.size {
		return fmt.Errorf("frame size %v differs from recording size %v", size, r.size)
	}
	if err := writeRGBA(r.stdin, frame, r.buf); err != nil {
		return fmt.Errorf("failed to write frame to encoder: %w", err)
	}
	return nil
}

// Close flushes the encoder and waits for it to finish the file.
func (r *Recorder) Close() error {
	if r.cmd == nil {
		return nil
	}
	r.stdin.Close()
	if err := r.cmd.Wait(); err != nil {
		return fmt.Errorf("encoder failed: %w: %s", err, r.stderr.String())
	}
	return nil
}

// writeRGBA writes frame as tightly packed RGBA rows, using buf as scratch
// space when frame is not already packed that way.
func writeRGBA(w io.Writer, frame image.Image, buf *image.RGBA) error {
	b := frame.Bounds()
	if rgba, ok := frame.(*image.RGBA); ok && rgba.Stride == 4*b.Dx() {
		start := rgba.PixOffset(b.Min.X, b.Min.Y)
		_, err := w.Write(rgba.Pix[start : start+4*b.Dx()*b.Dy()])
		return err
	}
	draw.Draw(buf, buf.Bounds(), frame, b.Min, draw.Src)
	_, err := w.Write(buf.Pix)
	return err
}
