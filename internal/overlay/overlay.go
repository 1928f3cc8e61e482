// Package overlay draws detection boxes and labels onto frames.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	// BoxColor outlines detected faces.
	BoxColor = color.RGBA{0, 255, 0, 255}
	// LabelColor is used for the classification text.
	LabelColor = color.RGBA{255, 255, 0, 255}
)

// LabelSize is the label font size in points.
const LabelSize = 18

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Copy returns a mutable RGBA copy of img with the same bounds.
func Copy(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

// LineWidth returns the box stroke width for a frame of the given height.
// Halves round to even, and the width never drops below one pixel.
func LineWidth(height int) int {
	w := int(math.RoundToEven(float64(height) / 150))
	if w < 1 {
		return 1
	}
	return w
}

// Rectangle strokes r onto dst.
func Rectangle(dst *image.RGBA, r image.Rectangle, c color.Color, width int) {
	dc := gg.NewContextForRGBA(dst)
	dc.SetColor(c)
	dc.SetLineWidth(float64(width))
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}

// Label writes text with its baseline at p.
func Label(dst *image.RGBA, text string, p image.Point, c color.Color) {
	dc := gg.NewContextForRGBA(dst)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: LabelSize}))
	dc.SetColor(c)
	dc.DrawString(text, float64(p.X), float64(p.Y))
}
