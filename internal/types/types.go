package types

import "time"

// SessionSummary is the persisted outcome of one watch run.
type SessionSummary struct {
	ID             string
	Source         string
	Backend        string
	StartedAt      time.Time
	EndedAt        time.Time
	Frames         int
	FacelessFrames int
	Detections     int
	Classified     int
	Skipped        int
	Labels         []LabelCount
}

// Duration is the wall-clock length of the session.
func (s SessionSummary) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// LabelCount is how many faces received a gender/age pair.
type LabelCount struct {
	Gender string
	Age    string
	Count  int
}
