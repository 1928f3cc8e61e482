// Package blob turns image regions into the normalised NCHW tensors the
// detector and classifier networks expect.
package blob

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/andresmejia3/visage/internal/tensor"
)

// Config describes how a region is shaped into a blob.
type Config struct {
	// Size is the spatial size of the blob (X = width, Y = height).
	Size image.Point
	// Mean is subtracted per output channel, in output channel order.
	Mean [3]float64
	// Scale multiplies every value after mean subtraction. Zero means 1.
	Scale float64
	// SwapRB emits RGB planes instead of the native BGR planes.
	SwapRB bool
	// Crop resizes keeping the aspect ratio and centre-crops to Size.
	Crop bool
}

// Detection is the blob layout of the SSD face detector.
var Detection = Config{
	Size:   image.Pt(300, 300),
	Mean:   [3]float64{104, 117, 123},
	Scale:  1,
	SwapRB: true,
}

// Classification is the blob layout shared by the age and gender networks.
// The means are fixed by the pretrained weights.
var Classification = Config{
	Size:  image.Pt(227, 227),
	Mean:  [3]float64{78.4263377603, 87.7689143744, 114.895847746},
	Scale: 1,
}

// ErrEmptyImage is returned when the source region has no pixels.
var ErrEmptyImage = errors.New("blob: empty image")

// FromImage builds a [1,3,H,W] tensor from img.
func FromImage(img image.Image, cfg Config) (*tensor.Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if cfg.Size.X <= 0 || cfg.Size.Y <= 0 {
		return nil, fmt.Errorf("blob: invalid target size %v", cfg.Size)
	}
	scale := cfg.Scale
	if scale == 0 {
		scale = 1
	}

	var sized image.Image
	if cfg.Crop {
		sized = imaging.Fill(img, cfg.Size.X, cfg.Size.Y, imaging.Center, imaging.Linear)
	} else {
		sized = resize.Resize(uint(cfg.Size.X), uint(cfg.Size.Y), img, resize.Bilinear)
	}

	w, h := cfg.Size.X, cfg.Size.Y
	out := tensor.New(1, 3, h, w)
	plane := w * h

	// BGR is the native plane order; src[c] is the RGB component feeding plane c.
	src := [3]int{2, 1, 0}
	if cfg.SwapRB {
		src = [3]int{0, 1, 2}
	}

	b := sized.Bounds()
	var px [3]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px = rgbAt(sized, b.Min.X+x, b.Min.Y+y)
			base := y*w + x
			for c := 0; c < 3; c++ {
				out.Data[c*plane+base] = float32((float64(px[src[c]]) - cfg.Mean[c]) * scale)
			}
		}
	}
	return out, nil
}

// rgbAt reads the 8-bit RGB components of a pixel.
func rgbAt(img image.Image, x, y int) [3]uint8 {
	switch m := img.(type) {
	case *image.RGBA:
		i := m.PixOffset(x, y)
		return [3]uint8{m.Pix[i], m.Pix[i+1], m.Pix[i+2]}
	case *image.NRGBA:
		i := m.PixOffset(x, y)
		return [3]uint8{m.Pix[i], m.Pix[i+1], m.Pix[i+2]}
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
}
