// Package worker runs a network in a child process. Requests are written to
// the child's stdin and responses are read from a side-channel pipe that the
// child sees as fd 3, so its stdout/stderr logging never corrupts the data.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/andresmejia3/visage/internal/tensor"
	"github.com/andresmejia3/visage/internal/utils" // Using the SafeCommand wrapper
)

// DefaultTimeout bounds a single forward pass.
const DefaultTimeout = 30 * time.Second

// Worker is an inference.Service backed by a child process.
type Worker struct {
	Name     string
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
	Timeout  time.Duration

	mu     sync.Mutex
	closed bool
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Start launches argv as the worker for the named network.
func Start(name string, argv []string, timeout time.Duration) (*Worker, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("worker %s: empty command", name)
	}
	proc := utils.NewSafeCommand(argv[0], argv[1:]...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	proc.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := proc.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := proc.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %s failed to start: %w", name, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Worker{
		Name:     name,
		Cmd:      proc,
		Stdin:    stdin,
		DataPipe: r,
		Timeout:  timeout,
	}, nil
}

// Forward sends one blob and waits for the output tensor.
func (w *Worker) Forward(ctx context.Context, blob *tensor.Tensor) (*tensor.Tensor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("worker %s is closed", w.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := WriteFrame(w.Stdin, EncodeTensor(blob)); err != nil {
		return nil, fmt.Errorf("failed to send blob to worker %s: %w", w.Name, err)
	}

	if d, ok := w.DataPipe.(deadliner); ok {
		deadline := time.Now().Add(w.Timeout)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		d.SetReadDeadline(deadline)
	}

	payload, err := ReadFrame(w.DataPipe)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, fmt.Errorf("worker %s timed out after %s", w.Name, w.Timeout)
		}
		// This is where a crashed child shows up (EOF on the data pipe).
		return nil, fmt.Errorf("failed to read response from worker %s: %w", w.Name, err)
	}
	return decodeResponse(payload)
}

// Close shuts the pipes and waits for the child to exit.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	err := multierr.Combine(w.Stdin.Close(), w.DataPipe.Close())
	if w.Cmd != nil {
		if werr := w.Cmd.Wait(); werr != nil {
			err = multierr.Append(err, fmt.Errorf("worker %s exited: %w", w.Name, werr))
		}
	}
	return err
}
