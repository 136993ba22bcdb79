package service

import (
	"context"
	"fmt"
	"io"

	"github.com/filedepot/filedepot/ledger"
	"github.com/filedepot/filedepot/logging/logger"
	"github.com/filedepot/filedepot/storage"
)

// ExportResult holds a completed job and its output artifacts in the order
// recorded at completion time.
type ExportResult struct {
	Job       *ledger.Job
	Artifacts []*storage.Artifact
}

// ExportService reads completed jobs and streams their output artifacts.
// It never mutates existing jobs or stored artifacts.
type ExportService struct {
	store  storage.Store
	ledger ledger.Ledger
	logger *logger.Logger
}

// NewExportService creates the export service.
func NewExportService(store storage.Store, led ledger.Ledger, log *logger.Logger) *ExportService {
	return &ExportService{store: store, ledger: led, logger: log}
}

// Fetch resolves a job's outputs. Returns ErrNotReady while the job is
// pending or running, a *JobFailedError carrying the stored detail when it
// failed, and ledger.ErrNotFound for unknown ids.
func (s *ExportService) Fetch(ctx context.Context, jobID string) (*ExportResult, error) {
	job, err := s.ledger.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case ledger.StatusPending, ledger.StatusRunning:
		return nil, fmt.Errorf("%w: job %s is %s", ErrNotReady, jobID, job.Status)
	case ledger.StatusFailed:
		return nil, &JobFailedError{JobID: jobID, Detail: job.Error}
	}

	artifacts := make([]*storage.Artifact, 0, len(job.OutputRefs))
	for _, ref := range job.OutputRefs {
		artifact, err := s.store.Stat(ctx, ref)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}

	return &ExportResult{Job: job, Artifacts: artifacts}, nil
}

// Open opens one output artifact for streaming.
func (s *ExportService) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	return s.store.Get(ctx, ref)
}

// RequestBundle creates a new export job that bundles the outputs of a
// completed job. It never mutates the source job; the bundle is produced by
// the pipeline like any other work.
func (s *ExportService) RequestBundle(ctx context.Context, sourceJobID string) (*ledger.Job, error) {
	source, err := s.ledger.Get(ctx, sourceJobID)
	if err != nil {
		return nil, err
	}

	switch source.Status {
	case ledger.StatusPending, ledger.StatusRunning:
		return nil, fmt.Errorf("%w: job %s is %s", ErrNotReady, sourceJobID, source.Status)
	case ledger.StatusFailed:
		return nil, &JobFailedError{JobID: sourceJobID, Detail: source.Error}
	}
	if len(source.OutputRefs) == 0 {
		return nil, fmt.Errorf("%w: job %s has no outputs", ErrNotExportable, sourceJobID)
	}

	job, err := s.ledger.Create(ctx, ledger.KindExport, sourceJobID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Export bundle requested", "job_id", job.ID, "source_job_id", sourceJobID)
	return job, nil
}
