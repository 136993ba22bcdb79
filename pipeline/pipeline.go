// Package pipeline consumes pending jobs from the ledger, applies the
// handler registered for each job kind, stores output artifacts, and
// advances job state.
//
// Multiple pipelines may run concurrently, in one process or many; the
// ledger's conditional transition is the sole coordination primitive. A
// claim that loses the compare-and-swap is dropped silently; the winner
// owns the job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/filedepot/filedepot/concurrency/worker"
	"github.com/filedepot/filedepot/config"
	"github.com/filedepot/filedepot/ledger"
	"github.com/filedepot/filedepot/logging/logger"
	"github.com/filedepot/filedepot/storage"
)

// Handler processes one claimed job and returns the references of its output
// artifacts, in the order they should be streamed back to callers.
type Handler func(ctx context.Context, task *Task) ([]string, error)

// errCancelled aborts a handler at a checkpoint after cancellation was
// requested.
var errCancelled = errors.New(ledger.ErrCancelled)

// Pipeline coordinates job claiming, execution, and reclaim.
type Pipeline struct {
	cfg      *config.Pipeline
	ledger   ledger.Ledger
	store    storage.Store
	pool     *worker.Pool
	logger   *logger.Logger
	handlers map[ledger.Kind]Handler
	breaker  *gobreaker.CircuitBreaker
	workerID string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a pipeline. Handlers for the built-in kinds are registered by
// the caller via Register before Start.
func New(cfg *config.Pipeline, led ledger.Ledger, store storage.Store, log *logger.Logger) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())

	pool := worker.NewPool(&worker.Config{
		MaxWorkers:  cfg.MaxWorkers,
		QueueSize:   cfg.QueueSize,
		TaskTimeout: cfg.TaskTimeout,
	})

	// The breaker keeps the poll loop from hammering a database that is
	// already refusing connections.
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ledger-poll",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Pipeline{
		cfg:      cfg,
		ledger:   led,
		store:    store,
		pool:     pool,
		logger:   log,
		handlers: make(map[ledger.Kind]Handler),
		breaker:  breaker,
		workerID: uuid.NewString(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Register installs the handler for a job kind. Must be called before Start.
func (p *Pipeline) Register(kind ledger.Kind, handler Handler) {
	p.handlers[kind] = handler
}

// Start launches the worker pool, the poll loop, and the reclaimer.
func (p *Pipeline) Start() {
	p.pool.Start()
	go p.pollLoop()
	go p.reclaimLoop()
	p.logger.Info(p.ctx, "Pipeline started",
		"worker_id", p.workerID,
		"max_workers", p.cfg.MaxWorkers,
		"poll_interval", p.cfg.PollInterval.String(),
	)
}

// Stop shuts the pipeline down, waiting for in-flight jobs until ctx expires.
func (p *Pipeline) Stop(ctx context.Context) {
	p.cancel()
	<-p.done
	p.pool.Stop(ctx)
	p.logger.Info(context.Background(), "Pipeline stopped", "worker_id", p.workerID)
}

// Metrics returns the worker pool metrics.
func (p *Pipeline) Metrics() map[string]int64 {
	return p.pool.GetMetrics()
}

func (p *Pipeline) pollLoop() {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

func (p *Pipeline) pollOnce() {
	if p.pool.IsBusy() {
		return
	}

	result, err := p.breaker.Execute(func() (any, error) {
		return p.ledger.ListPending(p.ctx, p.cfg.BatchSize)
	})
	if err != nil {
		if !errors.Is(err, gobreaker.ErrOpenState) {
			p.logger.Error(p.ctx, "Failed to poll pending jobs", "error", err)
		}
		return
	}

	jobs := result.([]*ledger.Job)
	for _, job := range jobs {
		id := job.ID
		if err := p.pool.Submit(func() error { return p.execute(id) }); err != nil {
			// Queue full: the job stays pending and the next poll
			// picks it up.
			return
		}
	}
}

func (p *Pipeline) reclaimLoop() {
	ticker := time.NewTicker(p.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			n, err := p.ledger.Reclaim(p.ctx, p.cfg.StalenessThreshold)
			if err != nil {
				p.logger.Error(p.ctx, "Reclaim failed", "error", err)
				continue
			}
			if n > 0 {
				p.logger.Warn(p.ctx, "Reclaimed stale jobs", "count", n)
			}
		}
	}
}

// execute claims and runs a single job. A lost claim is not an error.
func (p *Pipeline) execute(jobID string) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.TaskTimeout)
	defer cancel()
	ctx, _ = logger.EnsureTraceID(ctx)

	job, err := p.ledger.Transition(ctx, jobID, ledger.StatusPending, ledger.StatusRunning)
	if err != nil {
		if errors.Is(err, ledger.ErrConflict) || errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		return err
	}

	p.logger.Info(ctx, "Job claimed", "job_id", job.ID, "kind", job.Kind, "worker_id", p.workerID)

	handler, ok := p.handlers[job.Kind]
	if !ok {
		return p.fail(ctx, job, fmt.Errorf("no handler for job kind %q", job.Kind))
	}

	outputRefs, err := p.run(ctx, handler, job)
	if err != nil {
		return p.fail(ctx, job, err)
	}

	// The completed transition is the last write: a reader can never
	// observe completed with missing outputs.
	if _, err := p.ledger.Transition(ctx, job.ID, ledger.StatusRunning, ledger.StatusCompleted,
		ledger.WithOutputRefs(outputRefs)); err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			// Reclaimed mid-flight and finished elsewhere. The
			// artifacts we wrote are content-addressed and harmless.
			p.logger.Warn(ctx, "Lost job before completion", "job_id", job.ID)
			return nil
		}
		// Connectivity failure: leave the job running for reclaim.
		p.logger.Error(ctx, "Failed to commit completion", "job_id", job.ID, "error", err)
		return err
	}

	p.logger.Info(ctx, "Job completed", "job_id", job.ID, "outputs", len(outputRefs))
	return nil
}

// run invokes the handler, converting a panic into an error.
func (p *Pipeline) run(ctx context.Context, handler Handler, job *ledger.Job) (refs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	task := &Task{
		Job:      job,
		store:    p.store,
		ledger:   p.ledger,
		workerID: p.workerID,
	}
	return handler(ctx, task)
}

// fail records a handler failure on the job. Processing errors never crash
// the worker; ledger connectivity errors leave the job running for reclaim.
func (p *Pipeline) fail(ctx context.Context, job *ledger.Job, cause error) error {
	p.logger.Error(ctx, "Job failed", "job_id", job.ID, "error", cause)

	if _, err := p.ledger.Transition(ctx, job.ID, ledger.StatusRunning, ledger.StatusFailed,
		ledger.WithError(cause.Error())); err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			return nil
		}
		p.logger.Error(ctx, "Failed to record job failure", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}
