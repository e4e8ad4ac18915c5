package domain

import "time"

// Phase is the lifecycle stage reported by a progress event.
type Phase string

const (
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseCancelled Phase = "cancelled"
	PhaseFailed    Phase = "failed"
)

// IsTerminal reports whether the phase ends the stream.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled || p == PhaseFailed
}

// ProgressEvent is one snapshot of a job's progress as seen by observers.
type ProgressEvent struct {
	JobID         string    `json:"job_id"`
	Scope         string    `json:"scope"`
	Current       int       `json:"current"`
	Total         int       `json:"total"`
	FailedCount   int       `json:"failed"`
	LastItemLabel string    `json:"last_item,omitempty"`
	Phase         Phase     `json:"phase"`
	Timestamp     time.Time `json:"timestamp"`
}

// IsTerminal reports whether this is the job's final event.
func (e ProgressEvent) IsTerminal() bool {
	return e.Phase.IsTerminal()
}
