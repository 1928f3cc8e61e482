package video

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"strings"
	"testing"
	"time"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func mjpegStream(t *testing.T, frames ...image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range frames {
		if err := jpeg.Encode(&buf, f, &jpeg.Options{Quality: 95}); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestMJPEGReader(t *testing.T) {
	stream := mjpegStream(t,
		solid(32, 24, color.RGBA{200, 10, 10, 255}),
		solid(32, 24, color.RGBA{10, 10, 200, 255}),
	)
	r := NewMJPEGReader(bytes.NewReader(stream))
	ctx := context.Background()

	for i, wantRed := range []bool{true, false} {
		img, ok, err := r.Read(ctx)
		if err != nil || !ok {
			t.Fatalf("Frame %d: ok=%v err=%v", i, ok, err)
		}
		if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 24 {
			t.Errorf("Frame %d: bounds %v", i, img.Bounds())
		}
		r8, _, b8, _ := img.At(16, 12).RGBA()
		if gotRed := r8 > b8; gotRed != wantRed {
			t.Errorf("Frame %d: red dominant = %v, want %v", i, gotRed, wantRed)
		}
	}

	if _, ok, err := r.Read(ctx); ok || err != nil {
		t.Errorf("Expected end of stream, got ok=%v err=%v", ok, err)
	}
}

func TestMJPEGReader_Corrupt(t *testing.T) {
	r := NewMJPEGReader(bytes.NewReader([]byte{0xFF, 0xD8, 0x00, 0x01, 0xFF, 0xD9}))
	if _, _, err := r.Read(context.Background()); err == nil {
		t.Error("Expected decode error")
	}
}

func TestMJPEGReader_Cancelled(t *testing.T) {
	r := NewMJPEGReader(bytes.NewReader(mjpegStream(t, solid(8, 8, color.RGBA{A: 255}))))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := r.Read(ctx); err == nil {
		t.Error("Expected context error")
	}
}

func TestHeadlessKeys(t *testing.T) {
	h := NewHeadless(strings.NewReader("x\n\n  q  \n"), true, nil)

	// Zero wait blocks until the reader delivers
	if k := h.WaitKey(0); k != 'x' {
		t.Errorf("First key = %q, want 'x'", k)
	}
	if k := h.WaitKey(time.Second); k != 'q' {
		t.Errorf("Second key = %q, want 'q'", k)
	}
	// Input exhausted
	if k := h.WaitKey(0); k != NoKey {
		t.Errorf("Expected NoKey after EOF, got %d", k)
	}
}

func TestHeadlessTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	h := NewHeadless(pr, true, nil)

	start := time.Now()
	if k := h.WaitKey(20 * time.Millisecond); k != NoKey {
		t.Errorf("Expected NoKey, got %d", k)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("WaitKey returned before its timeout")
	}
}

func TestHeadlessNonInteractive(t *testing.T) {
	h := NewHeadless(strings.NewReader("q\n"), false, nil)
	if k := h.WaitKey(0); k != NoKey {
		t.Errorf("Expected NoKey without a terminal, got %d", k)
	}
	if err := h.Show(solid(4, 4, color.RGBA{A: 255})); err != nil {
		t.Fatalf("Show failed: %v", err)
	}
	if h.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", h.Frames())
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestWriteRGBA(t *testing.T) {
	full := solid(4, 2, color.RGBA{1, 2, 3, 255})
	full.SetRGBA(3, 1, color.RGBA{9, 9, 9, 255})
	buf := image.NewRGBA(image.Rect(0, 0, 2, 2))

	// Packed frame is written as is
	var out bytes.Buffer
	if err := writeRGBA(&out, full, image.NewRGBA(image.Rect(0, 0, 4, 2))); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes(), full.Pix) {
		t.Error("Packed frame altered")
	}

	// A sub-image has a wider stride and must be repacked
	out.Reset()
	sub := full.SubImage(image.Rect(2, 0, 4, 2))
	if err := writeRGBA(&out, sub, buf); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 2*2*4 {
		t.Fatalf("Expected 16 bytes, got %d", out.Len())
	}
	last := out.Bytes()[12:16]
	if !bytes.Equal(last, []byte{9, 9, 9, 255}) {
		t.Errorf("Last pixel = %v, want [9 9 9 255]", last)
	}
}

func TestRecorderCloseWithoutFrames(t *testing.T) {
	r := NewRecorder(context.Background(), "unused.mp4", 0)
	if r.fps != 30 {
		t.Errorf("Default fps = %v, want 30", r.fps)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close without frames = %v", err)
	}
}
