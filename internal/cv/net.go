// Package cv adapts OpenCV (through gocv) to the inference, frame source and
// display interfaces. It needs cgo and an OpenCV 4 installation.
package cv

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"gocv.io/x/gocv"

	"github.com/andresmejia3/visage/internal/tensor"
)

// Net is an OpenCV dnn network usable as an inference.Service.
type Net struct {
	name string

	mu  sync.Mutex
	net gocv.Net
}

// ReadNet loads a network from its weights and topology files.
func ReadNet(name, weights, config string) (*Net, error) {
	n := gocv.ReadNet(weights, config)
	if n.Empty() {
		n.Close()
		return nil, fmt.Errorf("failed to load %s network from %s (%s)", name, weights, config)
	}
	return &Net{name: name, net: n}, nil
}

// Forward runs one blob through the network.
func (n *Net) Forward(ctx context.Context, blob *tensor.Tensor) (*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in, err := toMat(blob)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	n.mu.Lock()
	defer n.mu.Unlock()

	n.net.SetInput(in, "")
	out := n.net.Forward("")
	defer out.Close()
	if out.Empty() {
		return nil, fmt.Errorf("%s network returned no output", n.name)
	}
	return fromMat(out)
}

// Close releases the network.
func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}

func toMat(t *tensor.Tensor) (gocv.Mat, error) {
	if len(t.Data) == 0 {
		return gocv.Mat{}, fmt.Errorf("empty blob")
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&t.Data[0])), len(t.Data)*4)
	return gocv.NewMatWithSizesFromBytes(t.Shape, gocv.MatTypeCV32F, raw)
}

func fromMat(m gocv.Mat) (*tensor.Tensor, error) {
	data, err := m.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	// data aliases the Mat, which is closed after Forward returns.
	return tensor.FromData(m.Size(), append([]float32(nil), data...))
}
