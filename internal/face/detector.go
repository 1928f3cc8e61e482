// Package face detects faces in a frame and classifies their apparent age
// bracket and gender.
package face

import (
	"context"
	"fmt"
	"image"

	"github.com/andresmejia3/visage/internal/blob"
	"github.com/andresmejia3/visage/internal/inference"
	"github.com/andresmejia3/visage/internal/overlay"
	"github.com/andresmejia3/visage/internal/tensor"
)

// DefaultThreshold is the minimum detector confidence, exclusive.
const DefaultThreshold = 0.7

// Column layout of a detector output row.
const (
	colConfidence = 2
	colX1         = 3
	colY1         = 4
	colX2         = 5
	colY2         = 6
	minColumns    = 7
)

// Detection is an accepted face candidate in pixel coordinates.
// Box.Min is (x1, y1) and Box.Max is (x2, y2).
type Detection struct {
	Confidence float32
	Box        image.Rectangle
}

// Detector runs the face detection network over whole frames.
type Detector struct {
	Net       inference.Service
	Threshold float64
}

// NewDetector returns a Detector using the default threshold.
func NewDetector(net inference.Service) *Detector {
	return &Detector{Net: net, Threshold: DefaultThreshold}
}

// Detect returns a copy of frame with every accepted face outlined, and the
// accepted detections in the order the network reported them. No faces is
// not an error.
func (d *Detector) Detect(ctx context.Context, frame image.Image) (*image.RGBA, []Detection, error) {
	annotated := overlay.Copy(frame)

	in, err := blob.FromImage(frame, blob.Detection)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build detection blob: %w", err)
	}
	out, err := d.Net.Forward(ctx, in)
	if err != nil {
		return nil, nil, fmt.Errorf("face detector inference failed: %w", err)
	}

	b := frame.Bounds()
	detections, err := Decode(out, b.Dx(), b.Dy(), d.Threshold)
	if err != nil {
		return nil, nil, err
	}

	width := overlay.LineWidth(b.Dy())
	for _, det := range detections {
		overlay.Rectangle(annotated, det.Box.Add(b.Min), overlay.BoxColor, width)
	}
	return annotated, detections, nil
}

// Decode converts a [1,1,N,7] detector output into pixel-space detections
// for a width x height frame, keeping candidates with confidence strictly
// above threshold. Normalised coordinates are scaled and truncated.
func Decode(out *tensor.Tensor, width, height int, threshold float64) ([]Detection, error) {
	if out == nil || out.Dims() != 4 || out.Shape[3] < minColumns {
		var shape []int
		if out != nil {
			shape = out.Shape
		}
		return nil, fmt.Errorf("unexpected face detector output shape %v", shape)
	}

	thr := float32(threshold)
	w, h := float32(width), float32(height)

	var detections []Detection
	for i := 0; i < out.Shape[2]; i++ {
		conf := out.At(0, 0, i, colConfidence)
		if !(conf > thr) {
			continue
		}
		x1 := int(out.At(0, 0, i, colX1) * w)
		y1 := int(out.At(0, 0, i, colY1) * h)
		x2 := int(out.At(0, 0, i, colX2) * w)
		y2 := int(out.At(0, 0, i, colY2) * h)
		// image.Rect would reorder the corners; keep them as reported.
		detections = append(detections, Detection{
			Confidence: conf,
			Box:        image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2, y2)},
		})
	}
	return detections, nil
}
