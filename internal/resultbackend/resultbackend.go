// Package resultbackend implements per-task state/result/error/progress
// storage with condition-variable-style wait semantics, combining a
// job-tracker's in-memory record map with a checkpoint store's
// background expiry sweep.
package resultbackend

import (
	"context"
	"sync"
	"time"

	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/task"
	"github.com/oriys/novafabric/internal/value"
)

// Record is the stored state for a single task ID.
type Record struct {
	TaskID          string
	State           task.State
	Result          *value.Container
	Error           string
	Progress        int
	ProgressMessage string
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Store is the result-persistence contract the worker pool and task
// context write task outcomes through. Backend and PostgresBackend both
// implement it.
type Store interface {
	StoreState(taskID string, state task.State) error
	StoreResult(taskID string, result *value.Container) error
	StoreError(taskID string, errMsg string) error
	StoreProgress(taskID string, percent int, message string) error
	Get(taskID string) (Record, error)
}

// Waiter extends Store with blocking-wait semantics, used by
// asyncresult.AsyncResult.Get/Then. Only backends with an in-process
// waiter-channel wakeup (Backend, MirroredStore) implement it.
type Waiter interface {
	Store
	WaitForResult(ctx context.Context, taskID string, timeout time.Duration) (Record, error)
}

var (
	_ Store  = (*Backend)(nil)
	_ Waiter = (*Backend)(nil)
)

// Backend is the in-memory canonical result backend. Entries expire and
// are swept by a background cleanup loop, mirroring checkpoint.Store's
// cleanupLoop.
type Backend struct {
	mu      sync.Mutex
	records map[string]*record
	ttl     time.Duration
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type record struct {
	Record
	waiters []chan struct{}
}

// New creates a Backend whose entries expire after ttl (default 1 hour)
// and starts its cleanup loop.
func New(ttl time.Duration) *Backend {
	if ttl <= 0 {
		ttl = time.Hour
	}
	b := &Backend{
		records: make(map[string]*record),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	b.wg.Add(1)
	go b.cleanupLoop()
	return b
}

func (b *Backend) entry(taskID string) *record {
	r, ok := b.records[taskID]
	if !ok {
		r = &record{Record: Record{TaskID: taskID, State: task.StatePending}}
		b.records[taskID] = r
	}
	return r
}

// StoreState records a task's current state.
func (b *Backend) StoreState(taskID string, state task.State) error {
	b.mu.Lock()
	r := b.entry(taskID)
	r.State = state
	r.UpdatedAt = time.Now()
	r.ExpiresAt = r.UpdatedAt.Add(b.ttl)
	b.notifyLocked(r, state)
	b.mu.Unlock()
	return nil
}

// StoreResult records a task's successful result and marks it succeeded.
func (b *Backend) StoreResult(taskID string, result *value.Container) error {
	b.mu.Lock()
	r := b.entry(taskID)
	r.Result = result
	r.State = task.StateSucceeded
	r.Progress = 100
	r.UpdatedAt = time.Now()
	r.ExpiresAt = r.UpdatedAt.Add(b.ttl)
	b.notifyLocked(r, task.StateSucceeded)
	b.mu.Unlock()
	return nil
}

// StoreError records a task's failure and marks it failed.
func (b *Backend) StoreError(taskID string, errMsg string) error {
	b.mu.Lock()
	r := b.entry(taskID)
	r.Error = errMsg
	r.State = task.StateFailed
	r.UpdatedAt = time.Now()
	r.ExpiresAt = r.UpdatedAt.Add(b.ttl)
	b.notifyLocked(r, task.StateFailed)
	b.mu.Unlock()
	return nil
}

// StoreProgress updates a task's progress percentage and message without
// changing its state.
func (b *Backend) StoreProgress(taskID string, percent int, message string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	b.mu.Lock()
	r := b.entry(taskID)
	r.Progress = percent
	r.ProgressMessage = message
	r.UpdatedAt = time.Now()
	r.ExpiresAt = r.UpdatedAt.Add(b.ttl)
	b.mu.Unlock()
	return nil
}

// Get returns a snapshot of the stored record for taskID.
func (b *Backend) Get(taskID string) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.records[taskID]
	if !ok {
		return Record{}, ferrors.New(ferrors.TaskNotFound, "resultbackend.Get", "no record for task: "+taskID)
	}
	return r.Record, nil
}

// WaitForResult blocks until the task reaches a terminal state
// (succeeded/failed/cancelled/expired) or timeout elapses.
func (b *Backend) WaitForResult(ctx context.Context, taskID string, timeout time.Duration) (Record, error) {
	b.mu.Lock()
	r := b.entry(taskID)
	if isTerminal(r.State) {
		snap := r.Record
		b.mu.Unlock()
		return snap, nil
	}
	ch := make(chan struct{}, 1)
	r.waiters = append(r.waiters, ch)
	b.mu.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-ch:
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.entry(taskID).Record, nil
	case <-deadline:
		return Record{}, ferrors.New(ferrors.Timeout, "resultbackend.WaitForResult", "timed out waiting for result")
	case <-ctx.Done():
		return Record{}, ferrors.Wrap(ferrors.Timeout, "resultbackend.WaitForResult", ctx.Err())
	}
}

func isTerminal(s task.State) bool {
	switch s {
	case task.StateSucceeded, task.StateFailed, task.StateCancelled, task.StateExpired:
		return true
	default:
		return false
	}
}

func (b *Backend) notifyLocked(r *record, state task.State) {
	if !isTerminal(state) {
		return
	}
	for _, ch := range r.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	r.waiters = nil
}

// CleanupExpired removes every record past its expiry, returning the count
// removed. Called periodically by cleanupLoop but also exposed for tests
// and manual invocation.
func (b *Backend) CleanupExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, r := range b.records {
		if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
			delete(b.records, id)
			removed++
		}
	}
	return removed
}

func (b *Backend) cleanupLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.CleanupExpired()
		}
	}
}

// Stop halts the background cleanup loop.
func (b *Backend) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}
