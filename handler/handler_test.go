package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/filedepot/filedepot/config"
	"github.com/filedepot/filedepot/data"
	"github.com/filedepot/filedepot/ledger"
	"github.com/filedepot/filedepot/logging/logger"
	"github.com/filedepot/filedepot/service"
	"github.com/filedepot/filedepot/storage"

	_ "github.com/filedepot/filedepot/data/sqlite"
)

type testEnv struct {
	router *gin.Engine
	ledger ledger.Ledger
	store  *storage.LocalFileSystem
	root   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	d, cleanup, err := data.New(context.Background(), &config.Data{
		Driver: "sqlite",
		Source: filepath.Join(dir, "ledger.db"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(cleanup)

	led, err := ledger.NewSQLLedger(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root := filepath.Join(dir, "artifacts")
	store, err := storage.NewFileSystem(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	storageCfg := &config.Storage{Root: root, AllowedExtensions: []string{"csv", "xlsx"}}
	intake := service.NewIntakeService(storageCfg, store, led, logger.StdLogger())
	export := service.NewExportService(store, led, logger.StdLogger())

	metrics := func() map[string]int64 {
		return map[string]int64{"active_workers": 0}
	}
	jobs := NewJobHandler(intake, export, metrics, logger.StdLogger())
	health := NewHealthHandler(d, root)

	return &testEnv{
		router: NewRouter(gin.TestMode, jobs, health),
		ledger: led,
		store:  store,
		root:   root,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, filename, content string) *ledger.Job {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(content))
	req.Header.Set("X-Filename", filename)
	w := e.do(t, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var job ledger.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &job
}

func TestUpload_Multipart(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "data.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := io.WriteString(fw, "a,b\n1,2\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := env.do(t, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Trace-Id") == "" {
		t.Error("expected X-Trace-Id header")
	}

	var job ledger.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != ledger.StatusPending || job.Kind != ledger.KindIngest {
		t.Errorf("unexpected job: %+v", job)
	}
	if !strings.HasPrefix(job.InputRef, storage.NamespaceUploads+"/") {
		t.Errorf("expected uploads ref, got %s", job.InputRef)
	}
}

func TestUpload_RawBody(t *testing.T) {
	env := newTestEnv(t)
	job := env.upload(t, "data.csv", "a,b\n1,2\n")
	if job.Status != ledger.StatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}
}

func TestUpload_Rejections(t *testing.T) {
	env := newTestEnv(t)

	// No file and no filename header.
	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader("a,b\n"))
	if w := env.do(t, req); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing filename, got %d", w.Code)
	}

	// Disallowed extension.
	req = httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader("binary"))
	req.Header.Set("X-Filename", "tool.exe")
	if w := env.do(t, req); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad extension, got %d", w.Code)
	}
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t)
	created := env.upload(t, "data.csv", "a,b\n1,2\n")

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/jobs/"+created.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var job ledger.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID != created.ID {
		t.Errorf("expected job %s, got %s", created.ID, job.ID)
	}

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/jobs/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListUploads(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "one.csv", "a\n1\n")
	env.upload(t, "two.csv", "b\n2\n")

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/uploads?limit=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var jobs []*ledger.Job
	if err := json.Unmarshal(w.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("expected 1 job, got %d", len(jobs))
	}

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/uploads?limit=bogus", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid limit, got %d", w.Code)
	}
}

func TestCancelJob(t *testing.T) {
	env := newTestEnv(t)
	created := env.upload(t, "data.csv", "a,b\n1,2\n")

	w := env.do(t, httptest.NewRequest(http.MethodPost, "/jobs/"+created.ID+"/cancel", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var job ledger.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != ledger.StatusFailed || job.Error != ledger.ErrCancelled {
		t.Errorf("expected cancelled job, got %+v", job)
	}

	// Cancelling a terminal job conflicts.
	w = env.do(t, httptest.NewRequest(http.MethodPost, "/jobs/"+created.ID+"/cancel", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestFetchExport_NotReady(t *testing.T) {
	env := newTestEnv(t)
	created := env.upload(t, "data.csv", "a,b\n1,2\n")

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/exports/"+created.ID, nil))
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for pending job, got %d: %s", w.Code, w.Body.String())
	}
}

func TestFetchExport_FailedJob(t *testing.T) {
	env := newTestEnv(t)
	created := env.upload(t, "data.csv", "a,b\n1,2\n")
	ctx := context.Background()

	if _, err := env.ledger.Transition(ctx, created.ID, ledger.StatusPending, ledger.StatusFailed,
		ledger.WithError("row 3: bad record")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/exports/"+created.ID, nil))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "row 3: bad record") {
		t.Errorf("expected stored failure detail, got %s", w.Body.String())
	}
}

func TestFetchExport_Completed(t *testing.T) {
	env := newTestEnv(t)
	created := env.upload(t, "data.csv", "a,b\n1,2\n")
	ctx := context.Background()

	out, err := env.store.Put(ctx, storage.NamespaceExports, strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.ledger.Transition(ctx, created.ID, ledger.StatusPending, ledger.StatusRunning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.ledger.Transition(ctx, created.ID, ledger.StatusRunning, ledger.StatusCompleted,
		ledger.WithOutputRefs([]string{out.Ref})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/exports/"+created.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "a,b\n1,2\n" {
		t.Errorf("expected artifact content, got %q", got)
	}
	if w.Header().Get("Content-Length") != "8" {
		t.Errorf("expected Content-Length 8, got %s", w.Header().Get("Content-Length"))
	}
	if want := "sha256:" + out.Digest; w.Header().Get("X-Content-Digest") != want {
		t.Errorf("expected digest header %s, got %s", want, w.Header().Get("X-Content-Digest"))
	}
}

func TestCreateExport(t *testing.T) {
	env := newTestEnv(t)
	created := env.upload(t, "data.csv", "a,b\n1,2\n")
	ctx := context.Background()

	out, err := env.store.Put(ctx, storage.NamespaceExports, strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.ledger.Transition(ctx, created.ID, ledger.StatusPending, ledger.StatusRunning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.ledger.Transition(ctx, created.ID, ledger.StatusRunning, ledger.StatusCompleted,
		ledger.WithOutputRefs([]string{out.Ref})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := strings.NewReader(`{"job_id":"` + created.ID + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/exports", body)
	req.Header.Set("Content-Type", "application/json")
	w := env.do(t, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var job ledger.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Kind != ledger.KindExport || job.InputRef != created.ID {
		t.Errorf("unexpected export job: %+v", job)
	}

	// Missing job_id.
	req = httptest.NewRequest(http.MethodPost, "/exports", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	if w := env.do(t, req); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	// Unknown source job.
	req = httptest.NewRequest(http.MethodPost, "/exports", strings.NewReader(`{"job_id":"missing"}`))
	req.Header.Set("Content-Type", "application/json")
	if w := env.do(t, req); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "data.csv", "a,b\n1,2\n")

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats struct {
		Total  int              `json:"total"`
		Jobs   map[string]int   `json:"jobs"`
		Worker map[string]int64 `json:"worker"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 1 || stats.Jobs["pending"] != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if _, ok := stats.Worker["active_workers"]; !ok {
		t.Error("expected worker metrics")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealth_ReadyDegraded(t *testing.T) {
	env := newTestEnv(t)
	if err := os.RemoveAll(env.root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "degraded") {
		t.Errorf("expected degraded status, got %s", w.Body.String())
	}
}
