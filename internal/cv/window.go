package cv

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Window is a HighGUI display sink.
type Window struct {
	w *gocv.Window
}

// NewWindow opens a window with the given title.
func NewWindow(title string) *Window {
	return &Window{w: gocv.NewWindow(title)}
}

// Show displays frame.
func (w *Window) Show(frame image.Image) error {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()
	w.w.IMShow(mat)
	return nil
}

// WaitKey polls the keyboard for up to wait; zero blocks. It returns -1
// when no key was pressed.
func (w *Window) WaitKey(wait time.Duration) int {
	ms := int(wait.Milliseconds())
	if wait > 0 && ms == 0 {
		ms = 1
	}
	key := w.w.WaitKey(ms)
	if key < 0 {
		return -1
	}
	return key & 0xFF
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.w.Close()
}
