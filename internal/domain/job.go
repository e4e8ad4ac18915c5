package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a bulk forecast job.
// Completed, Cancelled and Failed are terminal.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusFailed    JobStatus = "failed"
)

var allowedTransitions = map[JobStatus]map[JobStatus]struct{}{
	JobStatusPending: {
		JobStatusRunning:   {},
		JobStatusCancelled: {},
		JobStatusFailed:    {},
	},
	JobStatusRunning: {
		JobStatusCompleted: {},
		JobStatusCancelled: {},
		JobStatusFailed:    {},
	},
	JobStatusCompleted: {},
	JobStatusCancelled: {},
	JobStatusFailed:    {},
}

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusFailed
}

// Phase maps a status onto the progress-event phase. Pending jobs report as running.
func (s JobStatus) Phase() Phase {
	switch s {
	case JobStatusCompleted:
		return PhaseCompleted
	case JobStatusCancelled:
		return PhaseCancelled
	case JobStatusFailed:
		return PhaseFailed
	default:
		return PhaseRunning
	}
}

// ValidateTransition returns an error unless from -> to is a legal lifecycle step.
func ValidateTransition(from, to JobStatus) error {
	next, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("invalid job status: %q", from)
	}
	if _, ok := allowedTransitions[to]; !ok {
		return fmt.Errorf("invalid job status: %q", to)
	}
	if _, ok := next[to]; !ok {
		return fmt.Errorf("invalid job transition: %s -> %s", from, to)
	}
	return nil
}

// ForecastJob represents one bulk forecast run over a scope and its progress counters.
type ForecastJob struct {
	ID            string     `gorm:"type:text;primaryKey" json:"id"`
	Scope         string     `gorm:"type:text;not null;index" json:"scope"`
	Status        JobStatus  `gorm:"default:pending" json:"status"`
	Total         int        `gorm:"default:0" json:"total"`
	Current       int        `gorm:"default:0" json:"current"`
	FailedCount   int        `gorm:"default:0" json:"failed_count"`
	LastItemLabel string     `json:"last_item_label,omitempty"`
	ErrorLog      string     `json:"error_log,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ForecastJob.
func (ForecastJob) TableName() string {
	return "forecast_jobs"
}

// Progress builds the progress event describing the job's current counters.
func (j *ForecastJob) Progress(at time.Time) ProgressEvent {
	return ProgressEvent{
		JobID:         j.ID,
		Scope:         j.Scope,
		Current:       j.Current,
		Total:         j.Total,
		FailedCount:   j.FailedCount,
		LastItemLabel: j.LastItemLabel,
		Phase:         j.Status.Phase(),
		Timestamp:     at,
	}
}
