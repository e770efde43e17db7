// Package worker implements the task worker pool: a handler registry
// with retry/backoff, per-attempt timeout, and graceful shutdown,
// following a poll/dispatch/retry-or-fail pool structure.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/oriys/novafabric/internal/backend"
	"github.com/oriys/novafabric/internal/logging"
	"github.com/oriys/novafabric/internal/resultbackend"
	"github.com/oriys/novafabric/internal/task"
	"github.com/oriys/novafabric/internal/taskqueue"
)

// Handler executes a task. A non-nil error triggers the retry/backoff
// policy; Context carries the per-attempt timeout and cancellation.
type Handler func(ctx *TaskContext) error

// Config configures a Pool.
type Config struct {
	Concurrency     int
	Queues          []string
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if len(c.Queues) == 0 {
		c.Queues = []string{"default"}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 200 * time.Millisecond
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Pool dequeues tasks from a taskqueue.Registry and dispatches them to
// registered handlers, recording outcomes in a resultbackend.Store. Every
// handler invocation runs through the supplied backend.Backend's Executor,
// so per-attempt timeout, monitoring, and tracing are the backend's to
// control rather than the pool's.
type Pool struct {
	cfg      Config
	tq       *taskqueue.Registry
	results  resultbackend.Store
	backend  backend.Backend
	handlers map[string]Handler

	mu      sync.RWMutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Pool over tq, recording results in results and dispatching
// every handler call through be's Executor.
func New(tq *taskqueue.Registry, results resultbackend.Store, be backend.Backend, cfg Config) *Pool {
	cfg.setDefaults()
	return &Pool{
		cfg:      cfg,
		tq:       tq,
		results:  results,
		backend:  be,
		handlers: make(map[string]Handler),
		stopCh:   make(chan struct{}),
	}
}

// RegisterHandler binds a handler to a task name. Re-registering replaces
// the previous handler.
func (p *Pool) RegisterHandler(taskName string, h Handler) {
	p.mu.Lock()
	p.handlers[taskName] = h
	p.mu.Unlock()
}

// Start launches Concurrency worker goroutines.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.loop(i)
	}
	logging.Op().Info("worker pool started", "concurrency", p.cfg.Concurrency, "queues", p.cfg.Queues)
}

// Stop signals workers to exit and waits up to ShutdownTimeout for drain.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownTimeout):
		logging.Op().Warn("worker pool stop: shutdown timeout exceeded, workers may still be running")
	}
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()
	workerID := fmt.Sprintf("worker-%d", id)
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		t, err := p.tq.Dequeue(context.Background(), p.cfg.Queues, p.cfg.PollInterval)
		if err != nil {
			continue
		}
		p.process(workerID, t)
	}
}

func (p *Pool) process(workerID string, t *task.Task) {
	if t.State == task.StateCancelled {
		return
	}
	if t.Expired() {
		_ = t.Transition(task.StateExpired)
		p.results.StoreState(t.ID, task.StateExpired)
		return
	}

	if err := t.Transition(task.StateRunning); err != nil {
		logging.Op().Error("illegal task transition to running", "task_id", t.ID, "error", err)
		return
	}
	p.results.StoreState(t.ID, task.StateRunning)

	p.mu.RLock()
	handler, ok := p.handlers[t.Name]
	p.mu.RUnlock()
	if !ok {
		p.fail(workerID, t, "no handler registered for task: "+t.Name)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.Config.Timeout)
	tc := &TaskContext{ctx: ctx, task: t, results: p.results}
	err := func() error {
		defer cancel()
		return p.backend.Executor().Execute(ctx, t.ID, func(ctx context.Context) error {
			tc.ctx = ctx
			return handler(tc)
		})
	}()

	if err == nil {
		_ = t.Transition(task.StateSucceeded)
		if tc.result != nil {
			p.results.StoreResult(t.ID, tc.result)
		} else {
			p.results.StoreState(t.ID, task.StateSucceeded)
		}
		p.backend.Monitoring().RecordWorkerActivity(workerID, true)
		logging.Op().Debug("task succeeded", "task_id", t.ID, "name", t.Name, "attempt", t.Attempt)
		return
	}

	p.retryOrFail(workerID, t, err)
}

func (p *Pool) retryOrFail(workerID string, t *task.Task, cause error) {
	t.LastError = cause.Error()
	if t.Attempt >= t.Config.MaxRetries {
		p.fail(workerID, t, cause.Error())
		return
	}

	t.Attempt++
	delay := calcBackoff(t.Attempt, t.Config.RetryDelay, t.Config.RetryBackoffMultiplier)
	t.Config.ETA = time.Now().Add(delay)

	if err := t.Transition(task.StateRetrying); err != nil {
		logging.Op().Error("illegal transition to retrying", "task_id", t.ID, "error", err)
		return
	}
	p.results.StoreState(t.ID, task.StateRetrying)
	p.backend.Monitoring().RecordWorkerRetry(workerID)

	if err := p.tq.Enqueue(t); err != nil {
		logging.Op().Error("failed to re-enqueue task for retry", "task_id", t.ID, "error", err)
		return
	}
	logging.Op().Warn("task retry scheduled", "task_id", t.ID, "name", t.Name,
		"attempt", t.Attempt, "delay", delay, "error", cause)
}

func (p *Pool) fail(workerID string, t *task.Task, errMsg string) {
	if err := t.Transition(task.StateFailed); err != nil {
		logging.Op().Error("illegal transition to failed", "task_id", t.ID, "error", err)
		return
	}
	p.results.StoreError(t.ID, errMsg)
	p.backend.Monitoring().RecordWorkerActivity(workerID, false)
	logging.Op().Error("task failed permanently", "task_id", t.ID, "name", t.Name,
		"attempt", t.Attempt, "error", errMsg)
}

// calcBackoff computes an exponential-backoff delay for the given attempt,
// mirroring a standard exponential-backoff-with-retry-cap pattern.
func calcBackoff(attempt int, base time.Duration, multiplier float64) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if multiplier <= 0 {
		multiplier = 2
	}
	if attempt < 1 {
		attempt = 1
	}
	ms := float64(base/time.Millisecond) * math.Pow(multiplier, float64(attempt-1))
	return time.Duration(ms) * time.Millisecond
}

