// Package handler provides the HTTP endpoints for uploads, jobs, exports,
// and health probes.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/filedepot/filedepot/ecode"
	"github.com/filedepot/filedepot/ledger"
	"github.com/filedepot/filedepot/logging/logger"
	"github.com/filedepot/filedepot/net/resp"
	"github.com/filedepot/filedepot/service"
	"github.com/filedepot/filedepot/storage"
)

// JobHandler handles upload, job, and export HTTP requests.
type JobHandler struct {
	intake  *service.IntakeService
	export  *service.ExportService
	metrics func() map[string]int64
	logger  *logger.Logger
}

// NewJobHandler creates a new job handler. metrics reports the pipeline's
// worker pool counters for the stats endpoint.
func NewJobHandler(intake *service.IntakeService, export *service.ExportService, metrics func() map[string]int64, log *logger.Logger) *JobHandler {
	return &JobHandler{
		intake:  intake,
		export:  export,
		metrics: metrics,
		logger:  log,
	}
}

// Upload accepts a file upload and returns the created ingest job.
// The file arrives either as multipart form field "file" or as the raw
// request body with the filename in the X-Filename header.
func (h *JobHandler) Upload(c *gin.Context) {
	filename, body, err := uploadPayload(c)
	if err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}
	defer body.Close()

	job, err := h.intake.Submit(c.Request.Context(), filename, body)
	if err != nil {
		h.failWith(c, err)
		return
	}

	resp.WithStatusCode(c.Writer, http.StatusAccepted, job)
}

// ListUploads lists the most recent jobs, newest first.
func (h *JobHandler) ListUploads(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			resp.Fail(c.Writer, resp.BadRequest(ecode.FieldIsInvalid("limit")))
			return
		}
		limit = n
	}

	jobs, err := h.intake.ListJobs(c.Request.Context(), limit)
	if err != nil {
		h.failWith(c, err)
		return
	}
	if jobs == nil {
		jobs = []*ledger.Job{}
	}
	resp.Success(c.Writer, jobs)
}

// GetJob retrieves a job by ID.
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.intake.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failWith(c, err)
		return
	}
	resp.Success(c.Writer, job)
}

// CancelJob requests cancellation of a job.
func (h *JobHandler) CancelJob(c *gin.Context) {
	job, err := h.intake.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failWith(c, err)
		return
	}
	resp.Success(c.Writer, job)
}

// CreateExport creates an export job bundling a completed job's outputs.
func (h *JobHandler) CreateExport(c *gin.Context) {
	var req struct {
		JobID string `json:"job_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(ecode.FieldIsRequired("job_id"), err.Error()))
		return
	}

	job, err := h.export.RequestBundle(c.Request.Context(), req.JobID)
	if err != nil {
		h.failWith(c, err)
		return
	}
	resp.WithStatusCode(c.Writer, http.StatusAccepted, job)
}

// FetchExport streams a completed job's output artifacts in order.
func (h *JobHandler) FetchExport(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.export.Fetch(ctx, c.Param("id"))
	if err != nil {
		h.failWith(c, err)
		return
	}

	var total int64
	for _, artifact := range result.Artifacts {
		total += artifact.Size
	}

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Length", strconv.FormatInt(total, 10))
	if len(result.Artifacts) == 1 {
		c.Header("X-Content-Digest", "sha256:"+result.Artifacts[0].Digest)
	}
	c.Status(http.StatusOK)

	for _, artifact := range result.Artifacts {
		rc, err := h.export.Open(ctx, artifact.Ref)
		if err != nil {
			// Headers are gone; all we can do is cut the stream.
			h.logger.Error(ctx, "Failed to open output artifact", "ref", artifact.Ref, "error", err)
			return
		}
		_, copyErr := io.Copy(c.Writer, rc)
		rc.Close()
		if copyErr != nil {
			h.logger.Error(ctx, "Failed to stream output artifact", "ref", artifact.Ref, "error", copyErr)
			return
		}
	}
}

// GetStats returns ledger per-status counts and worker pool metrics.
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.intake.Stats(c.Request.Context())
	if err != nil {
		h.failWith(c, err)
		return
	}

	total := 0
	byStatus := make(map[string]int, len(stats))
	for status, count := range stats {
		byStatus[string(status)] = count
		total += count
	}

	resp.Success(c.Writer, gin.H{
		"total":  total,
		"jobs":   byStatus,
		"worker": h.metrics(),
	})
}

// failWith maps the pipeline error taxonomy to the response envelope.
func (h *JobHandler) failWith(c *gin.Context, err error) {
	var jobFailed *service.JobFailedError

	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		resp.Fail(c.Writer, resp.NotFound(err.Error()))
	case errors.Is(err, ledger.ErrConflict):
		resp.Fail(c.Writer, resp.Conflict(err.Error()))
	case errors.Is(err, service.ErrNotReady):
		resp.Fail(c.Writer, resp.NotReady(err.Error()))
	case errors.As(err, &jobFailed):
		resp.Fail(c.Writer, resp.JobFailed(jobFailed.Error()))
	case errors.Is(err, service.ErrInvalidUpload),
		errors.Is(err, service.ErrNotExportable),
		errors.Is(err, storage.ErrInvalidRef):
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
	case errors.Is(err, storage.ErrStorage):
		resp.Fail(c.Writer, resp.ServiceUnavailable(err.Error()))
	default:
		h.logger.Error(c.Request.Context(), "Request failed", "error", err)
		resp.Fail(c.Writer, resp.InternalServer("internal error"))
	}
}

// uploadPayload extracts the filename and content stream from the request.
func uploadPayload(c *gin.Context) (string, io.ReadCloser, error) {
	file, err := c.FormFile("file")
	if err == nil {
		f, openErr := file.Open()
		if openErr != nil {
			return "", nil, openErr
		}
		return file.Filename, f, nil
	}
	if err != http.ErrNotMultipart && err != http.ErrMissingFile {
		return "", nil, err
	}

	filename := c.GetHeader("X-Filename")
	if filename == "" {
		return "", nil, errors.New(ecode.FieldIsRequired("file") + ": provide multipart field 'file' or X-Filename header")
	}
	return filename, c.Request.Body, nil
}
