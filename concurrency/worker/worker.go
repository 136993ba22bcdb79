// Package worker provides a bounded worker pool with per-task timeouts.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrQueueFull = errors.New("task queue is full")

// Config represents pool configuration
type Config struct {
	MaxWorkers  int           // maximum number of workers
	QueueSize   int           // task queue size
	TaskTimeout time.Duration // timeout for single task
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxWorkers:  10,
		QueueSize:   1000,
		TaskTimeout: time.Minute,
	}
}

// Validate validates configuration
func (cfg *Config) Validate() error {
	if cfg.MaxWorkers < 1 {
		return errors.New("max workers must be greater than 0")
	}
	if cfg.QueueSize < 1 {
		return errors.New("queue size must be greater than 0")
	}
	if cfg.TaskTimeout < 0 {
		return errors.New("task timeout must be greater than or equal to 0")
	}
	return nil
}

// Processor represents a task processor
type Processor interface {
	Process(task any) error
}

// defaultProcessor runs func tasks directly
type defaultProcessor struct{}

func (p *defaultProcessor) Process(task any) error {
	switch t := task.(type) {
	case func() error:
		return t()
	case func():
		t()
		return nil
	default:
		return errors.New("unsupported task type")
	}
}

// Metrics tracks pool's operational metrics
type Metrics struct {
	ActiveWorkers  atomic.Int64
	PendingTasks   atomic.Int64
	CompletedTasks atomic.Int64
	FailedTasks    atomic.Int64
}

// Pool represents a worker pool
type Pool struct {
	maxWorkers  int
	queueSize   int
	taskTimeout time.Duration
	processor   Processor

	tasks  chan any
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics *Metrics
}

// NewPool creates a new worker pool. If no processor is given, tasks of type
// func() error and func() are executed directly.
func NewPool(cfg *Config, processors ...Processor) *Pool {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	var processor Processor
	if len(processors) > 0 {
		processor = processors[0]
	} else {
		processor = &defaultProcessor{}
	}

	return &Pool{
		maxWorkers:  cfg.MaxWorkers,
		queueSize:   cfg.QueueSize,
		taskTimeout: cfg.TaskTimeout,
		processor:   processor,
		tasks:       make(chan any, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &Metrics{},
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop stops the worker pool, waiting for in-flight tasks until ctx expires.
func (p *Pool) Stop(ctx context.Context) {
	p.cancel()
	close(p.tasks)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Submit submits a task to the pool
func (p *Pool) Submit(task any) error {
	select {
	case p.tasks <- task:
		p.metrics.PendingTasks.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.processTask(task)
		}
	}
}

func (p *Pool) processTask(task any) {
	p.metrics.ActiveWorkers.Add(1)
	p.metrics.PendingTasks.Add(-1)

	defer func() {
		p.metrics.ActiveWorkers.Add(-1)
		if r := recover(); r != nil {
			p.metrics.FailedTasks.Add(1)
		}
	}()

	taskCtx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
	defer cancel()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- p.processor.Process(task)
	}()

	select {
	case err := <-doneCh:
		if err != nil {
			p.metrics.FailedTasks.Add(1)
		} else {
			p.metrics.CompletedTasks.Add(1)
		}
	case <-taskCtx.Done():
		p.metrics.FailedTasks.Add(1)
	}
}

// GetMetrics returns the current metrics
func (p *Pool) GetMetrics() map[string]int64 {
	return map[string]int64{
		"active_workers":  p.metrics.ActiveWorkers.Load(),
		"pending_tasks":   p.metrics.PendingTasks.Load(),
		"completed_tasks": p.metrics.CompletedTasks.Load(),
		"failed_tasks":    p.metrics.FailedTasks.Load(),
	}
}

// IsBusy returns whether the pool is busy
func (p *Pool) IsBusy() bool {
	return p.metrics.ActiveWorkers.Load() >= int64(p.maxWorkers) ||
		p.metrics.PendingTasks.Load() >= int64(p.queueSize)
}

// IsIdle returns whether the pool is idle
func (p *Pool) IsIdle() bool {
	return p.metrics.ActiveWorkers.Load() == 0
}
