package pipeline

import (
	"context"
	"io"

	"github.com/filedepot/filedepot/ledger"
	"github.com/filedepot/filedepot/storage"
)

// Task is the execution context handed to a handler for one claimed job.
type Task struct {
	Job *ledger.Job

	store    storage.Store
	ledger   ledger.Ledger
	workerID string
}

// Input opens the job's input artifact for reading.
func (t *Task) Input(ctx context.Context) (io.ReadCloser, error) {
	return t.store.Get(ctx, t.Job.InputRef)
}

// PutOutput stores an output artifact in the exports namespace and returns it.
func (t *Task) PutOutput(ctx context.Context, r io.Reader) (*storage.Artifact, error) {
	return t.store.Put(ctx, storage.NamespaceExports, r)
}

// Store exposes the artifact store for handlers that need more than the
// common input/output helpers.
func (t *Task) Store() storage.Store {
	return t.store
}

// Ledger exposes read access to the job ledger for handlers whose input is
// another job (export bundling).
func (t *Task) Ledger() ledger.Ledger {
	return t.ledger
}

// Checkpoint refreshes the job's heartbeat and honors an advisory
// cancellation request. Handlers should call it between units of work; it
// returns an error when the job should stop.
func (t *Task) Checkpoint(ctx context.Context) error {
	current, err := t.ledger.Get(ctx, t.Job.ID)
	if err != nil {
		return err
	}
	if current.CancelRequested {
		return errCancelled
	}
	return t.ledger.Heartbeat(ctx, t.Job.ID)
}
