// Package ledger is the durable record of every ingestion and export job.
// It is the single source of truth for job state; all mutations are
// compare-and-swap transitions committed before the call returns.
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Kind tags the variant of work a job performs.
type Kind string

const (
	KindIngest Kind = "ingest"
	KindExport Kind = "export"
)

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	switch k {
	case KindIngest, KindExport:
		return true
	}
	return false
}

// Status is a job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final. Terminal jobs never
// transition again; reprocessing requires a new job.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether the status is known.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// allowedTransition holds the forward edges of the job state machine.
// The only backward edge, running -> pending, is reserved for Reclaim.
var allowedTransition = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is a legal forward transition.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransition[from] {
		if next == to {
			return true
		}
	}
	return false
}

var (
	// ErrNotFound indicates the job identifier is unknown.
	ErrNotFound = errors.New("job not found")
	// ErrConflict indicates an optimistic-concurrency loss: the job's
	// persisted state no longer matches the expected state. Safe to retry
	// after re-reading.
	ErrConflict = errors.New("job state conflict")
	// ErrInvalidTransition indicates the requested transition is not an
	// edge of the state machine.
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Job is a unit of ingestion or export work tracked through its lifecycle.
type Job struct {
	ID              string    `json:"id"`
	Kind            Kind      `json:"kind"`
	Status          Status    `json:"status"`
	InputRef        string    `json:"input_ref"`
	OutputRefs      []string  `json:"output_refs,omitempty"`
	Error           string    `json:"error,omitempty"`
	CancelRequested bool      `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (j *Job) String() string {
	return fmt.Sprintf("job %s (%s, %s)", j.ID, j.Kind, j.Status)
}
