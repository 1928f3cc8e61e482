package inference

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/andresmejia3/visage/internal/tensor"
)

type closeRecorder struct {
	closed int
	err    error
}

func (c *closeRecorder) Forward(context.Context, *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.New(1, 2), nil
}

func (c *closeRecorder) Close() error {
	c.closed++
	return c.err
}

func TestModelsValidate(t *testing.T) {
	noop := ServiceFunc(func(context.Context, *tensor.Tensor) (*tensor.Tensor, error) { return nil, nil })

	var nilModels *Models
	if err := nilModels.Validate(); err == nil {
		t.Error("Expected error for nil models")
	}
	if err := (&Models{Detector: noop, Gender: noop}).Validate(); err == nil || !strings.Contains(err.Error(), "age") {
		t.Errorf("Expected missing age error, got %v", err)
	}
	if err := (&Models{Detector: noop, Gender: noop, Age: noop}).Validate(); err != nil {
		t.Errorf("Expected valid models, got %v", err)
	}
}

func TestModelsCloseCombinesErrors(t *testing.T) {
	det := &closeRecorder{err: errors.New("detector close failed")}
	gen := &closeRecorder{}
	age := &closeRecorder{err: errors.New("age close failed")}

	m := &Models{Detector: det, Gender: gen, Age: age}
	err := m.Close()
	if err == nil {
		t.Fatal("Expected combined error")
	}
	if !strings.Contains(err.Error(), "detector close failed") || !strings.Contains(err.Error(), "age close failed") {
		t.Errorf("Expected both errors in %q", err)
	}
	if det.closed != 1 || gen.closed != 1 || age.closed != 1 {
		t.Errorf("Expected every service closed once, got %d/%d/%d", det.closed, gen.closed, age.closed)
	}
}
