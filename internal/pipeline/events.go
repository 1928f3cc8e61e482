package pipeline

// EventKind identifies something observable that happened in the loop.
type EventKind int

const (
	// EventNoFace is emitted for a frame without accepted detections. The
	// frame is not displayed.
	EventNoFace EventKind = iota + 1
	// EventRegionSkipped is emitted when a detection's padded region is empty.
	EventRegionSkipped
	EventFaceClassified
	EventStreamEnded
	EventQuit
)

func (k EventKind) String() string {
	switch k {
	case EventNoFace:
		return "no-face"
	case EventRegionSkipped:
		return "region-skipped"
	case EventFaceClassified:
		return "face-classified"
	case EventStreamEnded:
		return "stream-ended"
	case EventQuit:
		return "quit"
	}
	return "unknown"
}

// Event is delivered to an Observer. Frame is the 1-based index of the frame
// being processed, or the number of frames read for terminal events.
type Event struct {
	Kind  EventKind
	Frame int
	Face  Face
}

// Observer receives loop events synchronously on the loop goroutine.
type Observer func(Event)
