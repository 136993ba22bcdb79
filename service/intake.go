// Package service implements the intake and export services sitting between
// the HTTP layer and the pipeline's persistence primitives.
package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/filedepot/filedepot/config"
	"github.com/filedepot/filedepot/ledger"
	"github.com/filedepot/filedepot/logging/logger"
	"github.com/filedepot/filedepot/storage"
)

var validate = validator.New()

// SubmitRequest describes an upload submission.
type SubmitRequest struct {
	Filename string `validate:"required,max=500"`
}

// IntakeService accepts uploaded byte streams and records ingest jobs.
type IntakeService struct {
	store   storage.Store
	ledger  ledger.Ledger
	logger  *logger.Logger
	allowed map[string]struct{}
}

// NewIntakeService creates the intake service. Allowed extensions come from
// the storage configuration.
func NewIntakeService(cfg *config.Storage, store storage.Store, led ledger.Ledger, log *logger.Logger) *IntakeService {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &IntakeService{
		store:   store,
		ledger:  led,
		logger:  log,
		allowed: allowed,
	}
}

// Submit stores the uploaded bytes and creates a pending ingest job. The
// artifact is written first so a created job never points at a missing
// artifact. If job creation fails after a successful store, the orphaned
// artifact is left for garbage collection: it is content-addressed and
// idempotently reusable.
func (s *IntakeService) Submit(ctx context.Context, filename string, r io.Reader) (*ledger.Job, error) {
	req := SubmitRequest{Filename: filename}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	if err := s.checkExtension(filename); err != nil {
		return nil, err
	}

	artifact, err := s.store.Put(ctx, storage.NamespaceUploads, r)
	if err != nil {
		return nil, err
	}

	job, err := s.ledger.Create(ctx, ledger.KindIngest, artifact.Ref)
	if err != nil {
		s.logger.Warn(ctx, "Job creation failed after store; artifact orphaned",
			"ref", artifact.Ref, "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "Upload accepted",
		"job_id", job.ID, "ref", artifact.Ref, "size", artifact.Size, "filename", filename)
	return job, nil
}

// Cancel requests cancellation of a job. Pending jobs fail immediately with
// a cancellation error; running jobs are flagged for their worker's next
// checkpoint.
func (s *IntakeService) Cancel(ctx context.Context, jobID string) (*ledger.Job, error) {
	return s.ledger.RequestCancel(ctx, jobID)
}

// GetJob returns the job by id.
func (s *IntakeService) GetJob(ctx context.Context, jobID string) (*ledger.Job, error) {
	return s.ledger.Get(ctx, jobID)
}

// ListJobs returns the most recent jobs, newest first.
func (s *IntakeService) ListJobs(ctx context.Context, limit int) ([]*ledger.Job, error) {
	return s.ledger.List(ctx, limit)
}

// Stats returns per-status job counts.
func (s *IntakeService) Stats(ctx context.Context) (map[ledger.Status]int, error) {
	return s.ledger.Stats(ctx)
}

func (s *IntakeService) checkExtension(filename string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if _, ok := s.allowed[ext]; !ok {
		return fmt.Errorf("%w: extension %q not accepted", ErrInvalidUpload, ext)
	}
	return nil
}
