// Package tensor holds the dense float32 arrays exchanged with inference backends.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Tensor is a dense, row-major float32 array.
type Tensor struct {
	Shape []int
	Data  []float32
}

// New allocates a zeroed tensor with the given shape.
func New(shape ...int) *Tensor {
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, Volume(shape))}
}

// FromData wraps data in a tensor, checking that its length matches the shape.
func FromData(shape []int, data []float32) (*Tensor, error) {
	if v := Volume(shape); v != len(data) {
		return nil, fmt.Errorf("tensor shape %v needs %d values, got %d", shape, v, len(data))
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Volume returns the number of elements a tensor of the given shape holds.
func Volume(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0
		}
		n *= d
	}
	return n
}

// Dims returns the number of dimensions.
func (t *Tensor) Dims() int {
	return len(t.Shape)
}

// Offset converts a full index into a position in Data.
func (t *Tensor) Offset(idx ...int) int {
	if len(idx) != len(t.Shape) {
		panic(fmt.Sprintf("tensor: index %v does not match shape %v", idx, t.Shape))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= t.Shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.Shape))
		}
		off = off*t.Shape[i] + x
	}
	return off
}

// At returns the element at the given index.
func (t *Tensor) At(idx ...int) float32 {
	return t.Data[t.Offset(idx...)]
}

// Set stores v at the given index.
func (t *Tensor) Set(v float32, idx ...int) {
	t.Data[t.Offset(idx...)] = v
}

// Row returns the first vector along the last axis, which is how classifiers
// report their per-class scores for a single-image batch.
func (t *Tensor) Row() []float32 {
	if len(t.Shape) == 0 {
		return nil
	}
	n := t.Shape[len(t.Shape)-1]
	if n > len(t.Data) {
		n = len(t.Data)
	}
	return t.Data[:n]
}

// Argmax returns the index of the largest value. Ties resolve to the lowest
// index. It returns -1 for an empty slice.
func Argmax(v []float32) int {
	if len(v) == 0 {
		return -1
	}
	f := make([]float64, len(v))
	for i, x := range v {
		f[i] = float64(x)
	}
	return floats.MaxIdx(f)
}
