package ledger

import (
	"context"
	"time"
)

// Ledger is the job bookkeeping contract. All mutations are durable before
// the call returns; there are no deferred or buffered writes.
type Ledger interface {
	// Create records a new job in state pending.
	Create(ctx context.Context, kind Kind, inputRef string) (*Job, error)

	// Get returns the job or ErrNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// ListPending returns up to limit pending jobs, oldest first, so
	// concurrent workers claim work fairly.
	ListPending(ctx context.Context, limit int) ([]*Job, error)

	// Transition performs a conditional state change: it succeeds only if
	// the job's persisted state still equals from at commit time. Exactly
	// one of N concurrent callers wins; the rest get ErrConflict. Output
	// references and error detail are recorded in the same write as the
	// transition.
	Transition(ctx context.Context, id string, from, to Status, opts ...TransitionOption) (*Job, error)

	// Heartbeat bumps the freshness of a running job so a long task is not
	// reclaimed out from under its worker.
	Heartbeat(ctx context.Context, id string) error

	// Reclaim forces running jobs whose last update is older than the
	// staleness threshold back to pending, ignoring the prior owner. This
	// is the only backward transition, and it never touches terminal jobs.
	// Returns the number of jobs reclaimed.
	Reclaim(ctx context.Context, staleness time.Duration) (int, error)

	// RequestCancel cancels a pending job outright (transition to failed
	// with a cancellation error) or flags a running job so its worker
	// observes the request at the next checkpoint. Terminal jobs return
	// ErrConflict.
	RequestCancel(ctx context.Context, id string) (*Job, error)

	// List returns the most recent jobs, newest first.
	List(ctx context.Context, limit int) ([]*Job, error)

	// Stats returns per-status job counts.
	Stats(ctx context.Context) (map[Status]int, error)
}

// TransitionOption customizes a transition write.
type TransitionOption func(*transitionOpts)

type transitionOpts struct {
	outputRefs []string
	errDetail  string
}

// WithOutputRefs records the job's output artifact references, in the order
// they should be streamed back, as part of the transition write.
func WithOutputRefs(refs []string) TransitionOption {
	return func(o *transitionOpts) {
		o.outputRefs = refs
	}
}

// WithError records the failure detail as part of the transition write.
func WithError(detail string) TransitionOption {
	return func(o *transitionOpts) {
		o.errDetail = detail
	}
}

// ErrCancelled is the error detail recorded when a pending job is cancelled
// by request.
const ErrCancelled = "cancelled by request"
