package cv

import (
	"context"
	"fmt"
	"image"
	"strconv"

	"gocv.io/x/gocv"
)

// Capture reads frames from a camera index or a video file.
type Capture struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

// OpenCapture opens device, which is either a camera index such as "0" or a
// file path or stream URL.
func OpenCapture(device string) (*Capture, error) {
	var src interface{} = device
	if id, err := strconv.Atoi(device); err == nil {
		src = id
	}
	vc, err := gocv.OpenVideoCapture(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture %q: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video capture %q is not available", device)
	}
	return &Capture{vc: vc, mat: gocv.NewMat()}, nil
}

// Read returns the next frame, or ok=false when the stream has ended.
func (c *Capture) Read(ctx context.Context) (image.Image, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, false, nil
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, false, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, true, nil
}

// FPS reports the stream's nominal frame rate, or 0 when unknown.
func (c *Capture) FPS() float64 {
	return c.vc.Get(gocv.VideoCaptureFPS)
}

// FrameCount reports the number of frames of a file source, or 0.
func (c *Capture) FrameCount() int {
	return int(c.vc.Get(gocv.VideoCaptureFrameCount))
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mat.Close()
	return c.vc.Close()
}
