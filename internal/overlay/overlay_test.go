package overlay

import (
	"image"
	"image/color"
	"testing"
)

func TestLineWidth(t *testing.T) {
	tests := []struct {
		height int
		want   int
	}{
		{480, 3},
		{720, 5},
		{1080, 7},
		{375, 2}, // 2.5 rounds to even
		{525, 4}, // 3.5 rounds to even
		{60, 1},
		{10, 1}, // never invisible
	}

	for _, tt := range tests {
		if got := LineWidth(tt.height); got != tt.want {
			t.Errorf("LineWidth(%d) = %d, want %d", tt.height, got, tt.want)
		}
	}
}

func TestCopyIsIndependent(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	src.SetRGBA(2, 2, color.RGBA{1, 2, 3, 255})

	dst := Copy(src)
	if dst.RGBAAt(2, 2) != src.RGBAAt(2, 2) {
		t.Fatal("Copy did not preserve pixels")
	}
	dst.SetRGBA(2, 2, color.RGBA{9, 9, 9, 255})
	if src.RGBAAt(2, 2) == dst.RGBAAt(2, 2) {
		t.Error("Mutating the copy changed the source")
	}
}

func TestRectangleMarksBorderOnly(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 100, 100))
	Rectangle(dst, image.Rect(20, 20, 80, 80), BoxColor, 2)

	if got := dst.RGBAAt(50, 20); got.G == 0 {
		t.Errorf("Expected top edge to be drawn, got %v", got)
	}
	if got := dst.RGBAAt(50, 50); got != (color.RGBA{}) {
		t.Errorf("Expected interior untouched, got %v", got)
	}
}

func TestLabelDrawsPixels(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 200, 60))
	Label(dst, "Female, (25-32)", image.Pt(5, 40), LabelColor)

	drawn := false
	for i := 0; i < len(dst.Pix); i += 4 {
		if dst.Pix[i] != 0 {
			drawn = true
			break
		}
	}
	if !drawn {
		t.Error("Expected label text to touch at least one pixel")
	}
}
