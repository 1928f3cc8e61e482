package pipeline

import (
	"context"
	"image"

	"github.com/andresmejia3/visage/internal/face"
	"github.com/andresmejia3/visage/internal/inference"
	"github.com/andresmejia3/visage/internal/overlay"
)

// labelOffset lifts the label above the top edge of the box.
const labelOffset = 10

// Face is one accepted detection and, when its region was usable, its labels.
type Face struct {
	Detection  face.Detection
	Result     face.Result
	Classified bool
}

type annotator struct {
	detector   *face.Detector
	classifier *face.Classifier
}

func newAnnotator(models *inference.Models, cfg Config) *annotator {
	return &annotator{
		detector:   &face.Detector{Net: models.Detector, Threshold: cfg.Threshold},
		classifier: &face.Classifier{Gender: models.Gender, Age: models.Age, Padding: cfg.Padding},
	}
}

// label classifies det on the unannotated frame and writes the result onto dst.
func (a *annotator) label(ctx context.Context, frame image.Image, dst *image.RGBA, det face.Detection) (Face, error) {
	res, ok, err := a.classifier.Classify(ctx, frame, det.Box)
	if err != nil || !ok {
		return Face{Detection: det}, err
	}
	at := det.Box.Min.Add(frame.Bounds().Min).Sub(image.Pt(0, labelOffset))
	overlay.Label(dst, res.Text(), at, overlay.LabelColor)
	return Face{Detection: det, Result: res, Classified: true}, nil
}

// Analyze runs detection and classification over a single frame outside of a
// loop. The returned image is nil when no face was found.
func Analyze(ctx context.Context, models *inference.Models, cfg Config, frame image.Image) (*image.RGBA, []Face, error) {
	if err := models.Validate(); err != nil {
		return nil, nil, err
	}
	a := newAnnotator(models, cfg)

	annotated, detections, err := a.detector.Detect(ctx, frame)
	if err != nil {
		return nil, nil, err
	}
	if len(detections) == 0 {
		return nil, nil, nil
	}

	faces := make([]Face, 0, len(detections))
	for _, det := range detections {
		f, err := a.label(ctx, frame, annotated, det)
		if err != nil {
			return nil, nil, err
		}
		faces = append(faces, f)
	}
	return annotated, faces, nil
}
