package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady indicates the job is still pending or running. Callers
	// retry later; this is not a system error.
	ErrNotReady = errors.New("job not ready")

	// ErrInvalidUpload indicates the submission was rejected before any
	// byte was stored.
	ErrInvalidUpload = errors.New("invalid upload")

	// ErrNotExportable indicates a bundle was requested for a job that is
	// not a completed ingest job.
	ErrNotExportable = errors.New("job cannot be exported")
)

// JobFailedError carries the stored failure detail of a terminally failed
// job. It is surfaced verbatim and never retried automatically.
type JobFailedError struct {
	JobID  string
	Detail string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Detail)
}
