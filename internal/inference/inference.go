// Package inference defines the request/response contract of the pretrained
// networks and the handle that owns them for the lifetime of a run.
package inference

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	"github.com/andresmejia3/visage/internal/tensor"
)

// Service runs one forward pass of a loaded network.
type Service interface {
	Forward(ctx context.Context, blob *tensor.Tensor) (*tensor.Tensor, error)
	Close() error
}

// ServiceFunc adapts a plain function to the Service interface.
type ServiceFunc func(ctx context.Context, blob *tensor.Tensor) (*tensor.Tensor, error)

// Forward calls f.
func (f ServiceFunc) Forward(ctx context.Context, blob *tensor.Tensor) (*tensor.Tensor, error) {
	return f(ctx, blob)
}

// Close is a no-op.
func (f ServiceFunc) Close() error { return nil }

// Models owns the three networks used by the pipeline. Stages borrow the
// services; only the owner closes them.
type Models struct {
	Detector Service
	Gender   Service
	Age      Service
}

// Validate reports a missing network.
func (m *Models) Validate() error {
	if m == nil {
		return errors.New("inference: no models loaded")
	}
	if m.Detector == nil {
		return errors.New("inference: face detector not loaded")
	}
	if m.Gender == nil {
		return errors.New("inference: gender classifier not loaded")
	}
	if m.Age == nil {
		return errors.New("inference: age classifier not loaded")
	}
	return nil
}

// Close releases every loaded network and combines their errors.
func (m *Models) Close() error {
	if m == nil {
		return nil
	}
	var err error
	for _, s := range []Service{m.Detector, m.Gender, m.Age} {
		if s != nil {
			err = multierr.Append(err, s.Close())
		}
	}
	return err
}
