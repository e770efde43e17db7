// Package taskqueue implements the multi-queue task registry: a named
// set of ready queues backed by a shared delayed queue that promotes
// tasks once their ETA arrives.
package taskqueue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/logging"
	"github.com/oriys/novafabric/internal/task"
)

// readyQueue is a simple FIFO of tasks awaiting a worker, separate from
// internal/queue.Queue because it carries *task.Task, not *message.Envelope.
type readyQueue struct {
	mu    sync.Mutex
	items []*task.Task
	sig   chan struct{}
}

func newReadyQueue() *readyQueue {
	return &readyQueue{sig: make(chan struct{}, 1)}
}

func (q *readyQueue) push(t *task.Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
	select {
	case q.sig <- struct{}{}:
	default:
	}
}

func (q *readyQueue) pop() (*task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

func (q *readyQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// delayedItem is a task waiting for its ETA, ordered by ETA ascending.
type delayedItem struct {
	t     *task.Task
	index int
}

type delayedHeap []*delayedItem

func (h delayedHeap) Len() int            { return len(h) }
func (h delayedHeap) Less(i, j int) bool  { return h[i].t.Config.ETA.Before(h[j].t.Config.ETA) }
func (h delayedHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *delayedHeap) Push(x any) {
	it := x.(*delayedItem)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Registry is the multi-queue + delayed-queue task store.
type Registry struct {
	mu      sync.Mutex
	queues  map[string]*readyQueue
	delayed delayedHeap
	byID    map[string]*task.Task

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates an empty registry and starts its ETA-promotion loop.
func New() *Registry {
	r := &Registry{
		queues: make(map[string]*readyQueue),
		byID:   make(map[string]*task.Task),
		stopCh: make(chan struct{}),
	}
	heap.Init(&r.delayed)
	r.wg.Add(1)
	go r.promotionLoop()
	return r
}

func (r *Registry) queueFor(name string) *readyQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[name]
	if !ok {
		q = newReadyQueue()
		r.queues[name] = q
	}
	return q
}

// Enqueue registers t. If t's ETA is in the future, it is held in the
// delayed queue until due, then promoted into its named ready queue.
func (r *Registry) Enqueue(t *task.Task) error {
	if err := t.Transition(task.StateQueued); err != nil {
		return err
	}
	r.mu.Lock()
	r.byID[t.ID] = t
	r.mu.Unlock()

	if !t.Due() {
		r.mu.Lock()
		heap.Push(&r.delayed, &delayedItem{t: t})
		r.mu.Unlock()
		return nil
	}
	r.queueFor(t.Config.QueueName).push(t)
	return nil
}

// Dequeue blocks until a task is available on one of names, the timeout
// elapses, or the registry is stopped. Each pass checks names in the given
// order and returns the first available task, so an earlier queue is
// always drained before a later one is served; there is no round-robin.
func (r *Registry) Dequeue(ctx context.Context, names []string, timeout time.Duration) (*task.Task, error) {
	if len(names) == 0 {
		names = []string{"default"}
	}
	var deadlineC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadlineC = timer.C
	}
	const pollInterval = 50 * time.Millisecond
	for {
		for _, name := range names {
			if t, ok := r.queueFor(name).pop(); ok {
				return t, nil
			}
		}
		select {
		case <-time.After(pollInterval):
		case <-deadlineC:
			return nil, ferrors.New(ferrors.DequeueFailed, "taskqueue.Dequeue", "dequeue timed out")
		case <-ctx.Done():
			return nil, ferrors.Wrap(ferrors.DequeueFailed, "taskqueue.Dequeue", ctx.Err())
		case <-r.stopCh:
			return nil, ferrors.New(ferrors.QueueStopped, "taskqueue.Dequeue", "registry stopped")
		}
	}
}

// Cancel transitions a tracked task to cancelled. A cancelled task still
// in the delayed queue is never promoted; one already in a ready queue is
// still returned by Dequeue, and the worker pool skips it.
func (r *Registry) Cancel(taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[taskID]
	if !ok {
		return ferrors.New(ferrors.TaskNotFound, "taskqueue.Cancel", "no such task: "+taskID)
	}
	return t.Transition(task.StateCancelled)
}

// CancelByTag cancels every tracked, not-yet-terminal task carrying tag.
func (r *Registry) CancelByTag(tag string) (cancelled int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.HasTag(tag) {
			if err := t.Transition(task.StateCancelled); err == nil {
				cancelled++
			}
		}
	}
	return cancelled
}

// Get returns the tracked task for an ID, if any.
func (r *Registry) Get(taskID string) (*task.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[taskID]
	return t, ok
}

// promotionLoop periodically moves due delayed tasks into their ready
// queues.
func (r *Registry) promotionLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.promoteDue()
		}
	}
}

func (r *Registry) promoteDue() {
	var due []*task.Task
	r.mu.Lock()
	for len(r.delayed) > 0 && r.delayed[0].t.Due() {
		item := heap.Pop(&r.delayed).(*delayedItem)
		if item.t.State == task.StateCancelled {
			continue
		}
		due = append(due, item.t)
	}
	r.mu.Unlock()

	for _, t := range due {
		r.queueFor(t.Config.QueueName).push(t)
		logging.Op().Debug("task promoted from delayed queue", "task_id", t.ID, "queue", t.Config.QueueName)
	}
}

// Stop halts the ETA-promotion loop.
func (r *Registry) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}
