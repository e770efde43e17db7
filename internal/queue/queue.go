package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/message"
)

// Mode selects FIFO or priority ordering for Dequeue.
type Mode int

const (
	ModeFIFO Mode = iota
	ModePriority
)

// OverflowPolicy selects back-pressure behavior once the queue is full.
type OverflowPolicy int

const (
	// OverflowReject causes Enqueue to fail with ferrors.QueueFull.
	OverflowReject OverflowPolicy = iota
	// OverflowDropOldest evicts the oldest (or lowest priority) entry to
	// make room for the new one.
	OverflowDropOldest
)

// Options configures a Queue.
type Options struct {
	MaxSize  int // 0 means unbounded
	Mode     Mode
	Overflow OverflowPolicy
	Notifier Notifier
	Name     Name
}

type item struct {
	env   *message.Envelope
	seq   uint64
	index int
}

// priorityHeap orders by (priority desc, seq asc) so that FIFO order is
// preserved among equal priorities.
type priorityHeap []*item

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].env.Priority != h[j].env.Priority {
		return h[i].env.Priority > h[j].env.Priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *priorityHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is a bounded, thread-safe message queue supporting FIFO or
// priority ordering and a configurable overflow policy.
type Queue struct {
	mu         sync.Mutex
	signal     chan struct{}
	stopCh     chan struct{}
	notifyStop context.CancelFunc
	opts       Options
	fifo       []*item
	heap       priorityHeap
	seq        uint64
	stopped    bool

	enqueued uint64
	dequeued uint64
	dropped  uint64
	rejected uint64
}

// New creates a Queue with the given options. When opts.Notifier supports
// Subscribe with a non-Noop implementation, New starts a background
// goroutine that forwards subscription signals into the queue's own wake
// channel, so a consumer blocked in Dequeue wakes on a remote producer's
// Notify call instead of only its own local Enqueue calls.
func New(opts Options) *Queue {
	if opts.Notifier == nil {
		opts.Notifier = NewNoopNotifier()
	}
	notifyCtx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		opts:       opts,
		signal:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		notifyStop: cancel,
	}
	if opts.Mode == ModePriority {
		heap.Init(&q.heap)
	}
	if _, noop := opts.Notifier.(*NoopNotifier); !noop {
		go q.listenNotifier(notifyCtx)
	}
	return q
}

// listenNotifier relays external Notify signals (e.g. from another
// process sharing the same Redis-backed notifier) into this queue's wake
// channel so Dequeue returns promptly instead of waiting out its poll
// timeout.
func (q *Queue) listenNotifier(ctx context.Context) {
	ch := q.opts.Notifier.Subscribe(ctx, q.opts.Name)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
			q.wake()
		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue) len() int {
	if q.opts.Mode == ModePriority {
		return len(q.heap)
	}
	return len(q.fifo)
}

// Enqueue adds env to the queue, applying the configured overflow policy
// when the queue is at capacity.
func (q *Queue) Enqueue(ctx context.Context, env *message.Envelope) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ferrors.New(ferrors.QueueStopped, "queue.Enqueue", "queue is stopped")
	}
	if q.opts.MaxSize > 0 && q.len() >= q.opts.MaxSize {
		switch q.opts.Overflow {
		case OverflowReject:
			q.rejected++
			q.mu.Unlock()
			return ferrors.New(ferrors.QueueFull, "queue.Enqueue", "queue is full")
		case OverflowDropOldest:
			q.dropOldestLocked()
		}
	}
	q.seq++
	it := &item{env: env, seq: q.seq}
	if q.opts.Mode == ModePriority {
		heap.Push(&q.heap, it)
	} else {
		q.fifo = append(q.fifo, it)
	}
	q.enqueued++
	q.mu.Unlock()

	q.wake()
	_ = q.opts.Notifier.Notify(ctx, q.opts.Name)
	return nil
}

func (q *Queue) dropOldestLocked() {
	if q.opts.Mode == ModePriority {
		if len(q.heap) > 0 {
			// Evict the lowest-priority entry, the oldest among equals.
			victim := 0
			for i, it := range q.heap {
				v := q.heap[victim]
				if it.env.Priority < v.env.Priority || (it.env.Priority == v.env.Priority && it.seq < v.seq) {
					victim = i
				}
			}
			heap.Remove(&q.heap, victim)
			q.dropped++
		}
		return
	}
	if len(q.fifo) > 0 {
		q.fifo = q.fifo[1:]
		q.dropped++
	}
}

// TryDequeue removes and returns the next message without blocking. ok is
// false if the queue is currently empty.
func (q *Queue) TryDequeue() (env *message.Envelope, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *Queue) popLocked() (*message.Envelope, bool) {
	if q.len() == 0 {
		return nil, false
	}
	var it *item
	if q.opts.Mode == ModePriority {
		it = heap.Pop(&q.heap).(*item)
	} else {
		it = q.fifo[0]
		q.fifo = q.fifo[1:]
	}
	q.dequeued++
	return it.env, true
}

// Dequeue blocks until a message is available, the timeout elapses, or the
// queue is stopped. timeout <= 0 means wait indefinitely.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*message.Envelope, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		if env, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return env, nil
		}
		stopped := q.stopped
		q.mu.Unlock()
		if stopped {
			return nil, ferrors.New(ferrors.QueueStopped, "queue.Dequeue", "queue is stopped")
		}

		select {
		case <-q.signal:
			continue
		case <-q.stopCh:
			continue
		case <-deadline:
			return nil, ferrors.New(ferrors.QueueEmpty, "queue.Dequeue", "dequeue timed out")
		case <-ctx.Done():
			return nil, ferrors.Wrap(ferrors.DequeueFailed, "queue.Dequeue", ctx.Err())
		}
	}
}

// Size returns the number of messages currently queued.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len()
}

// Empty reports whether the queue currently holds no messages.
func (q *Queue) Empty() bool { return q.Size() == 0 }

// Clear removes all queued messages without stopping the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fifo = nil
	q.heap = nil
	if q.opts.Mode == ModePriority {
		heap.Init(&q.heap)
	}
}

// Stop marks the queue stopped and wakes any blocked dequeuers. Enqueue
// fails after Stop; already-queued messages remain dequeueable until
// drained.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()
	close(q.stopCh)
	q.notifyStop()
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Enqueued uint64
	Dequeued uint64
	Dropped  uint64
	Rejected uint64
	Size     int
}

// Stats returns a snapshot of the queue's counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Enqueued: q.enqueued,
		Dequeued: q.dequeued,
		Dropped:  q.dropped,
		Rejected: q.rejected,
		Size:     q.len(),
	}
}
