package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/andresmejia3/visage/internal/tensor"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
	closed bool
}

func (m *MockCloser) Close() error {
	m.closed = true
	return nil
}

func newMockWorker() (*Worker, *MockCloser, *MockCloser) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}
	w := &Worker{
		Name:     "gender",
		Stdin:    stdinMock,
		DataPipe: dataPipeMock,
		// Cmd is nil because we aren't testing process management, just the protocol
	}
	return w, stdinMock, dataPipeMock
}

func TestForward(t *testing.T) {
	w, stdinMock, dataPipeMock := newMockWorker()

	// Pre-fill the data pipe with a response: [Status:0] [Tensor]
	out, _ := tensor.FromData([]int{1, 2}, []float32{0.2, 0.8})
	payload := append([]byte{StatusOK}, EncodeTensor(out)...)
	if err := WriteFrame(dataPipeMock, payload); err != nil {
		t.Fatal(err)
	}

	in, _ := tensor.FromData([]int{1, 3, 1, 1}, []float32{-1.5, 0, 42})
	got, err := w.Forward(context.Background(), in)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if diff := cmp.Diff(out, got); diff != "" {
		t.Errorf("Response mismatch (-want +got):\n%s", diff)
	}

	// Verify the request that went TO the worker
	sent, err := ReadFrame(stdinMock)
	if err != nil {
		t.Fatalf("Request not framed: %v", err)
	}
	// 4 bytes rank + 4 dims + 3 floats
	if len(sent) != 4+4*4+3*4 {
		t.Errorf("Expected %d request bytes, got %d", 4+4*4+3*4, len(sent))
	}
	decoded, err := DecodeTensor(sent)
	if err != nil {
		t.Fatalf("Request does not decode: %v", err)
	}
	if diff := cmp.Diff(in, decoded); diff != "" {
		t.Errorf("Request mismatch (-want +got):\n%s", diff)
	}
}

func TestForward_Error(t *testing.T) {
	w, _, dataPipeMock := newMockWorker()

	// Protocol: [Status:1] [MsgLen] [Msg]
	payload := new(bytes.Buffer)
	payload.WriteByte(StatusError)

	errMsg := "net.forward: input blob has 3 channels, expected 1"
	binary.Write(payload, binary.BigEndian, uint32(len(errMsg)))
	payload.WriteString(errMsg)

	WriteFrame(dataPipeMock, payload.Bytes())

	_, err := w.Forward(context.Background(), tensor.New(1, 3, 2, 2))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if err.Error() != "inference worker error: "+errMsg {
		t.Errorf("Expected error message '%s', got '%v'", "inference worker error: "+errMsg, err)
	}
}

func TestForward_CrashedWorker(t *testing.T) {
	w, _, dataPipeMock := newMockWorker()

	// Header promises 10 bytes, child died after 2
	binary.Write(dataPipeMock, binary.BigEndian, uint32(10))
	dataPipeMock.Write([]byte{0, 0})

	_, err := w.Forward(context.Background(), tensor.New(1, 1))
	if err == nil || !strings.Contains(err.Error(), "failed to read response from worker gender") {
		t.Errorf("Expected read failure, got %v", err)
	}
}

func TestForward_CancelledContext(t *testing.T) {
	w, stdinMock, _ := newMockWorker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := w.Forward(ctx, tensor.New(1, 1)); err == nil {
		t.Fatal("Expected context error")
	}
	if stdinMock.Len() != 0 {
		t.Error("Nothing should be sent after cancellation")
	}
}

func TestClose(t *testing.T) {
	w, stdinMock, dataPipeMock := newMockWorker()

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !stdinMock.closed || !dataPipeMock.closed {
		t.Error("Expected both pipes closed")
	}
	if err := w.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
	if _, err := w.Forward(context.Background(), tensor.New(1, 1)); err == nil {
		t.Error("Expected Forward on a closed worker to fail")
	}
}

func TestDecodeTensor_Invalid(t *testing.T) {
	valid := EncodeTensor(tensor.New(2, 2))

	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"Zero rank", []byte{0, 0, 0, 0}},
		{"Rank too high", []byte{0, 0, 0, 9}},
		{"Shape truncated", []byte{0, 0, 0, 2, 0, 0, 0, 2}},
		{"Data truncated", valid[:len(valid)-1]},
		{"Trailing data", append(append([]byte{}, valid...), 0, 0, 0, 0)},
		{"Huge shape", []byte{0, 0, 0, 2, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTensor(tt.data); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestDecodeResponse_UnknownStatus(t *testing.T) {
	if _, err := decodeResponse([]byte{7}); err == nil {
		t.Error("Expected error for unknown status")
	}
	if _, err := decodeResponse(nil); err == nil {
		t.Error("Expected error for empty response")
	}
}
