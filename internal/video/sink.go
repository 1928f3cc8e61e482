package video

import (
	"bufio"
	"image"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// NoKey mirrors pipeline.NoKey.
const NoKey = -1

// Headless is a display sink without a window. Keys are read line by line
// from a terminal (type q and press Enter), and frames can be recorded.
type Headless struct {
	keys     chan int
	interact bool
	rec      *Recorder

	mu     sync.Mutex
	frames int
}

// NewHeadless reads keys from in when interactive is true. rec may be nil.
func NewHeadless(in io.Reader, interactive bool, rec *Recorder) *Headless {
	h := &Headless{keys: make(chan int, 8), interact: interactive, rec: rec}
	if interactive {
		go h.readKeys(in)
	}
	return h
}

// readKeys forwards the first character of every line. It exits when in is
// exhausted; a blocked terminal read outlives Close.
func (h *Headless) readKeys(in io.Reader) {
	defer close(h.keys)
	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		if s := strings.TrimSpace(line); s != "" {
			select {
			case h.keys <- int(s[0]):
			default:
			}
		}
		if err != nil {
			return
		}
	}
}

// Show records frame when a recorder is attached.
func (h *Headless) Show(frame image.Image) error {
	h.mu.Lock()
	h.frames++
	h.mu.Unlock()
	if h.rec != nil {
		return h.rec.Write(frame)
	}
	return nil
}

// Frames is the number of frames shown.
func (h *Headless) Frames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

// WaitKey returns the next key typed within wait. A zero wait blocks, except
// without a terminal where nothing could ever arrive.
func (h *Headless) WaitKey(wait time.Duration) int {
	if !h.interact {
		return NoKey
	}
	if wait <= 0 {
		k, ok := <-h.keys
		if !ok {
			return NoKey
		}
		return k
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case k, ok := <-h.keys:
		if !ok {
			return NoKey
		}
		return k
	case <-t.C:
		return NoKey
	}
}

// Close finishes the recording, if any.
func (h *Headless) Close() error {
	var err error
	if h.rec != nil {
		err = multierr.Append(err, h.rec.Close())
	}
	return err
}
