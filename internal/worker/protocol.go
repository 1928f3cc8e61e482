package worker

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/andresmejia3/visage/internal/tensor"
)

// Response status bytes.
const (
	StatusOK    byte = 0
	StatusError byte = 1
)

const (
	maxDims      = 8
	maxFrameSize = 256 * 1024 * 1024
)

// WriteFrame writes payload as [uint32 length][payload].
func WriteFrame(w io.Writer, payload []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(payload))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header)
	if n > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// EncodeTensor serialises t as [uint32 ndim][uint32 dims...][float32 data...], big endian.
func EncodeTensor(t *tensor.Tensor) []byte {
	buf := make([]byte, 0, 4+4*len(t.Shape)+4*len(t.Data))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(t.Shape)))
	for _, d := range t.Shape {
		buf = binary.BigEndian.AppendUint32(buf, uint32(d))
	}
	for _, v := range t.Data {
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// DecodeTensor parses the EncodeTensor layout.
func DecodeTensor(b []byte) (*tensor.Tensor, error) {
	if len(b) < 4 {
		return nil, errors.New("tensor header truncated")
	}
	ndim := int(binary.BigEndian.Uint32(b))
	b = b[4:]
	if ndim == 0 || ndim > maxDims {
		return nil, fmt.Errorf("unsupported tensor rank %d", ndim)
	}
	if len(b) < 4*ndim {
		return nil, errors.New("tensor shape truncated")
	}
	shape := make([]int, ndim)
	n := 1
	for i := range shape {
		shape[i] = int(binary.BigEndian.Uint32(b[4*i:]))
		n *= shape[i]
		if n > maxFrameSize/4 {
			return nil, fmt.Errorf("tensor shape %v too large", shape[:i+1])
		}
	}
	b = b[4*ndim:]

	if len(b) != 4*n {
		return nil, fmt.Errorf("tensor %v needs %d bytes of data, got %d", shape, 4*n, len(b))
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.BigEndian.Uint32(b[4*i:]))
	}
	return tensor.FromData(shape, data)
}

// decodeResponse turns a response payload into a tensor or the worker's error.
func decodeResponse(payload []byte) (*tensor.Tensor, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty worker response")
	}
	switch payload[0] {
	case StatusOK:
		return DecodeTensor(payload[1:])
	case StatusError:
		msg, err := ReadFrame(bytes.NewReader(payload[1:]))
		if err != nil {
			return nil, fmt.Errorf("malformed worker error: %w", err)
		}
		return nil, fmt.Errorf("inference worker error: %s", msg)
	}
	return nil, fmt.Errorf("unknown worker status %d", payload[0])
}
