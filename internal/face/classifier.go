package face

import (
	"context"
	"fmt"
	"image"

	"github.com/andresmejia3/visage/internal/blob"
	"github.com/andresmejia3/visage/internal/inference"
	"github.com/andresmejia3/visage/internal/tensor"
)

// DefaultPadding is the margin, in pixels, kept around a face before classifying it.
const DefaultPadding = 20

// Classifier predicts the gender and age bracket of detected faces.
type Classifier struct {
	Gender  inference.Service
	Age     inference.Service
	Padding int
}

// NewClassifier returns a Classifier using the default padding.
func NewClassifier(gender, age inference.Service) *Classifier {
	return &Classifier{Gender: gender, Age: age, Padding: DefaultPadding}
}

// ExtractRegion pads box and clamps it to a frame with the given bounds.
// Rows span [max(0, y1-p), min(y2+p, H-1)) and columns
// [max(0, x1-p), min(x2+p, W-1)), so the last row and column of the frame are
// never included. Inverted spans collapse to an empty rectangle.
func ExtractRegion(bounds, box image.Rectangle, padding int) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	x0 := max(0, box.Min.X-padding)
	y0 := max(0, box.Min.Y-padding)
	x1 := min(box.Max.X+padding, w-1)
	y1 := min(box.Max.Y+padding, h-1)
	if x1 <= x0 || y1 <= y0 {
		return image.Rectangle{}
	}
	return image.Rect(x0, y0, x1, y1).Add(bounds.Min)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Classify labels the face in box. It reports ok=false, without running
// inference, when the padded region is empty.
func (c *Classifier) Classify(ctx context.Context, frame image.Image, box image.Rectangle) (Result, bool, error) {
	region := ExtractRegion(frame.Bounds(), box, c.Padding)
	if region.Empty() {
		return Result{}, false, nil
	}
	si, ok := frame.(subImager)
	if !ok {
		return Result{}, false, fmt.Errorf("frame of type %T cannot be cropped", frame)
	}

	in, err := blob.FromImage(si.SubImage(region), blob.Classification)
	if err != nil {
		return Result{}, false, fmt.Errorf("failed to build classification blob: %w", err)
	}

	gender, err := predict(ctx, c.Gender, in, GenderLabels)
	if err != nil {
		return Result{}, false, fmt.Errorf("gender classification failed: %w", err)
	}
	age, err := predict(ctx, c.Age, in, AgeLabels)
	if err != nil {
		return Result{}, false, fmt.Errorf("age classification failed: %w", err)
	}
	return Result{Gender: gender, Age: age}, true, nil
}

// predict runs one classifier and returns the label with the highest score.
func predict(ctx context.Context, svc inference.Service, in *tensor.Tensor, labels []string) (string, error) {
	out, err := svc.Forward(ctx, in)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", fmt.Errorf("empty classifier output")
	}
	return Decision(out.Row(), labels)
}

// Decision maps a score vector onto labels by argmax.
func Decision(scores []float32, labels []string) (string, error) {
	if len(scores) != len(labels) {
		return "", fmt.Errorf("expected %d scores, got %d", len(labels), len(scores))
	}
	return labels[tensor.Argmax(scores)], nil
}
