// Package pipeline drives frames from a source through face detection and
// classification and onto a display sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"maps"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/andresmejia3/visage/internal/face"
	"github.com/andresmejia3/visage/internal/inference"
)

// NoKey is returned by Sink.WaitKey when nothing was pressed.
const NoKey = -1

// Source yields frames until ok is false.
type Source interface {
	Read(ctx context.Context) (frame image.Image, ok bool, err error)
	Close() error
}

// Sink presents annotated frames and polls for key presses. A zero wait
// blocks until a key arrives.
type Sink interface {
	Show(frame image.Image) error
	WaitKey(wait time.Duration) int
	Close() error
}

// State is a step of the loop.
type State int

const (
	AwaitingFrame State = iota
	Detecting
	ClassifyingFaces
	Displaying
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingFrame:
		return "awaiting-frame"
	case Detecting:
		return "detecting"
	case ClassifyingFaces:
		return "classifying-faces"
	case Displaying:
		return "displaying"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config tunes the loop.
type Config struct {
	Threshold float64
	Padding   int
	// KeyWait is the key poll after each displayed frame.
	KeyWait time.Duration
	// FinalWait is the key wait once the source is exhausted. Zero blocks.
	FinalWait time.Duration
	QuitKey   int
}

// DefaultConfig returns the settings of an interactive webcam session.
func DefaultConfig() Config {
	return Config{
		Threshold: face.DefaultThreshold,
		Padding:   face.DefaultPadding,
		KeyWait:   time.Millisecond,
		QuitKey:   'q',
	}
}

// Stats counts what a loop has processed so far.
type Stats struct {
	Frames         int
	FacelessFrames int
	Detections     int
	Classified     int
	Skipped        int
	Labels         map[face.Result]int
}

// Loop is the frame processing state machine. It borrows the models and
// owns the source and sink, which it closes on termination.
type Loop struct {
	// Observer, when set, receives every event.
	Observer Observer

	cfg    Config
	src    Source
	sink   Sink
	faces  *annotator
	logger *zap.SugaredLogger

	state    State
	frame    image.Image
	result   *image.RGBA
	pending  []face.Detection
	stats    Stats
	released bool
}

// New builds a loop in the AwaitingFrame state.
func New(models *inference.Models, src Source, sink Sink, cfg Config, logger *zap.SugaredLogger) (*Loop, error) {
	if err := models.Validate(); err != nil {
		return nil, err
	}
	if src == nil || sink == nil {
		return nil, errors.New("pipeline: source and sink are required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Loop{
		cfg:    cfg,
		src:    src,
		sink:   sink,
		faces:  newAnnotator(models, cfg),
		logger: logger,
		state:  AwaitingFrame,
		stats:  Stats{Labels: make(map[face.Result]int)},
	}, nil
}

// State returns the state the next Step will run.
func (l *Loop) State() State { return l.state }

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	s := l.stats
	s.Labels = maps.Clone(l.stats.Labels)
	return s
}

// Run steps the loop until it terminates. A cancelled context is treated
// like the quit key.
func (l *Loop) Run(ctx context.Context) error {
	for l.state != Terminated {
		if err := l.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Step runs exactly one state. Any error terminates the loop; the source and
// sink are released before Step returns.
func (l *Loop) Step(ctx context.Context) error {
	if l.state == Terminated {
		return nil
	}
	if ctx.Err() != nil {
		l.logger.Info("pipeline cancelled")
		l.emit(Event{Kind: EventQuit})
		return l.terminate()
	}

	var err error
	switch l.state {
	case AwaitingFrame:
		err = l.awaitFrame(ctx)
	case Detecting:
		err = l.detect(ctx)
	case ClassifyingFaces:
		err = l.classify(ctx)
	case Displaying:
		err = l.display()
	}
	if err != nil {
		return multierr.Append(err, l.terminate())
	}
	return nil
}

func (l *Loop) awaitFrame(ctx context.Context) error {
	frame, ok, err := l.src.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			l.logger.Info("pipeline cancelled")
			l.emit(Event{Kind: EventQuit})
			return l.terminate()
		}
		return fmt.Errorf("failed to read frame: %w", err)
	}
	if !ok {
		l.logger.Infow("frame source exhausted", "frames", l.stats.Frames)
		l.emit(Event{Kind: EventStreamEnded})
		l.sink.WaitKey(l.cfg.FinalWait)
		return l.terminate()
	}

	l.stats.Frames++
	l.frame = frame
	l.state = Detecting
	return nil
}

func (l *Loop) detect(ctx context.Context) error {
	annotated, detections, err := l.faces.detector.Detect(ctx, l.frame)
	if err != nil {
		return err
	}
	l.stats.Detections += len(detections)

	if len(detections) == 0 {
		l.stats.FacelessFrames++
		l.logger.Info("no face detected")
		l.emit(Event{Kind: EventNoFace})
		l.reset()
		return nil
	}

	l.result = annotated
	l.pending = detections
	l.state = ClassifyingFaces
	return nil
}

func (l *Loop) classify(ctx context.Context) error {
	for _, det := range l.pending {
		f, err := l.faces.label(ctx, l.frame, l.result, det)
		if err != nil {
			return err
		}
		if !f.Classified {
			l.stats.Skipped++
			l.logger.Debugw("face region empty, skipping", "box", det.Box)
			l.emit(Event{Kind: EventRegionSkipped, Face: f})
			continue
		}
		l.stats.Classified++
		l.stats.Labels[f.Result]++
		l.logger.Debugw("face classified", "gender", f.Result.Gender, "age", f.Result.AgeRange())
		l.emit(Event{Kind: EventFaceClassified, Face: f})
	}
	l.state = Displaying
	return nil
}

func (l *Loop) display() error {
	if err := l.sink.Show(l.result); err != nil {
		return fmt.Errorf("failed to display frame: %w", err)
	}
	key := l.sink.WaitKey(l.cfg.KeyWait)
	l.reset()
	if key == l.cfg.QuitKey {
		l.logger.Info("quit key pressed")
		l.emit(Event{Kind: EventQuit})
		return l.terminate()
	}
	return nil
}

// reset drops the per-frame working set and waits for the next frame.
func (l *Loop) reset() {
	l.frame, l.result, l.pending = nil, nil, nil
	l.state = AwaitingFrame
}

// terminate releases the source and sink once.
func (l *Loop) terminate() error {
	l.reset()
	l.state = Terminated
	if l.released {
		return nil
	}
	l.released = true
	return multierr.Combine(l.src.Close(), l.sink.Close())
}

func (l *Loop) emit(e Event) {
	e.Frame = l.stats.Frames
	if l.Observer != nil {
		l.Observer(e)
	}
}
