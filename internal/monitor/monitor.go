// Package monitor implements the statistics and event-callback surface:
// per-queue/per-worker snapshots plus task/worker lifecycle callbacks,
// built on a dual design of in-process atomic counters with an optional
// pluggable Prometheus registry sink.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/oriys/novafabric/internal/logging"
)

// Callbacks are invoked synchronously from whichever goroutine reports the
// event; implementations must not block.
type Callbacks struct {
	OnTaskStarted   func(taskID string)
	OnTaskCompleted func(taskID string, success bool)
	OnTaskFailed    func(taskID string, err error)
	OnWorkerOffline func(workerID string)
}

// QueueSnapshot is a point-in-time view of a single queue's counters.
type QueueSnapshot struct {
	Name     string
	Size     int
	Enqueued uint64
	Dequeued uint64
	Dropped  uint64
}

// WorkerSnapshot is a point-in-time view of a single worker's counters.
type WorkerSnapshot struct {
	ID        string
	Processed uint64
	Failed    uint64
	Retried   uint64
	LastSeen  time.Time
	Online    bool
}

// Monitor aggregates counters and dispatches lifecycle callbacks. All
// counters are atomic so the hot dispatch path never blocks on a lock,
// mirroring a common atomic-counter-store design; per-queue/per-worker
// snapshots are held in a read-heavy sync.Map-like guarded map.
type Monitor struct {
	cb Callbacks

	tasksStarted   atomic.Uint64
	tasksSucceeded atomic.Uint64
	tasksFailed    atomic.Uint64

	mu      sync.Mutex
	queues  map[string]*queueCounters
	workers map[string]*workerCounters

	sink Sink
}

type queueCounters struct {
	size     atomic.Int64
	enqueued atomic.Uint64
	dequeued atomic.Uint64
	dropped  atomic.Uint64
}

type workerCounters struct {
	processed atomic.Uint64
	failed    atomic.Uint64
	retried   atomic.Uint64
	lastSeen  atomic.Int64 // unix nano
	online    atomic.Bool
}

// Sink receives raw counter events for forwarding to an external system
// (e.g. Prometheus). Implementations must not block.
type Sink interface {
	ObserveTaskStarted()
	ObserveTaskCompleted(success bool)
	ObserveQueueSize(name string, size int)
}

// New creates a Monitor. sink may be nil to disable external forwarding.
func New(cb Callbacks, sink Sink) *Monitor {
	return &Monitor{
		cb:      cb,
		queues:  make(map[string]*queueCounters),
		workers: make(map[string]*workerCounters),
		sink:    sink,
	}
}

func (m *Monitor) queue(name string) *queueCounters {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[name]
	if !ok {
		q = &queueCounters{}
		m.queues[name] = q
	}
	return q
}

func (m *Monitor) worker(id string) *workerCounters {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[id]
	if !ok {
		w = &workerCounters{}
		w.online.Store(true)
		m.workers[id] = w
	}
	return w
}

// TaskStarted records a task beginning execution.
func (m *Monitor) TaskStarted(taskID string) {
	m.tasksStarted.Add(1)
	if m.sink != nil {
		m.sink.ObserveTaskStarted()
	}
	if m.cb.OnTaskStarted != nil {
		m.cb.OnTaskStarted(taskID)
	}
}

// TaskCompleted records a task's terminal outcome.
func (m *Monitor) TaskCompleted(taskID string, success bool) {
	if success {
		m.tasksSucceeded.Add(1)
	} else {
		m.tasksFailed.Add(1)
	}
	if m.sink != nil {
		m.sink.ObserveTaskCompleted(success)
	}
	if m.cb.OnTaskCompleted != nil {
		m.cb.OnTaskCompleted(taskID, success)
	}
}

// TaskFailed records a task failure with its cause, distinct from
// TaskCompleted(false) in that it always carries an error.
func (m *Monitor) TaskFailed(taskID string, err error) {
	if m.cb.OnTaskFailed != nil {
		m.cb.OnTaskFailed(taskID, err)
	}
}

// WorkerOffline marks a worker as no longer reachable.
func (m *Monitor) WorkerOffline(workerID string) {
	w := m.worker(workerID)
	w.online.Store(false)
	logging.Op().Warn("worker marked offline", "worker_id", workerID)
	if m.cb.OnWorkerOffline != nil {
		m.cb.OnWorkerOffline(workerID)
	}
}

// RecordQueueStats updates a named queue's snapshot from external counters
// (typically sourced from queue.Queue.Stats()).
func (m *Monitor) RecordQueueStats(name string, size int, enqueued, dequeued, dropped uint64) {
	q := m.queue(name)
	q.size.Store(int64(size))
	q.enqueued.Store(enqueued)
	q.dequeued.Store(dequeued)
	q.dropped.Store(dropped)
	if m.sink != nil {
		m.sink.ObserveQueueSize(name, size)
	}
}

// RecordWorkerActivity marks a worker as seen and tallies an outcome.
func (m *Monitor) RecordWorkerActivity(workerID string, success bool) {
	w := m.worker(workerID)
	if success {
		w.processed.Add(1)
	} else {
		w.failed.Add(1)
	}
	w.lastSeen.Store(time.Now().UnixNano())
	w.online.Store(true)
}

// RecordWorkerRetry tallies a retried attempt for workerID, distinct from
// a terminal failure recorded via RecordWorkerActivity.
func (m *Monitor) RecordWorkerRetry(workerID string) {
	w := m.worker(workerID)
	w.retried.Add(1)
	w.lastSeen.Store(time.Now().UnixNano())
	w.online.Store(true)
}

// QueueSnapshots returns a snapshot of every tracked queue.
func (m *Monitor) QueueSnapshots() []QueueSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QueueSnapshot, 0, len(m.queues))
	for name, q := range m.queues {
		out = append(out, QueueSnapshot{
			Name:     name,
			Size:     int(q.size.Load()),
			Enqueued: q.enqueued.Load(),
			Dequeued: q.dequeued.Load(),
			Dropped:  q.dropped.Load(),
		})
	}
	return out
}

// WorkerSnapshots returns a snapshot of every tracked worker.
func (m *Monitor) WorkerSnapshots() []WorkerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WorkerSnapshot, 0, len(m.workers))
	for id, w := range m.workers {
		out = append(out, WorkerSnapshot{
			ID:        id,
			Processed: w.processed.Load(),
			Failed:    w.failed.Load(),
			Retried:   w.retried.Load(),
			LastSeen:  time.Unix(0, w.lastSeen.Load()),
			Online:    w.online.Load(),
		})
	}
	return out
}

// Totals is an aggregate view across all tasks.
type Totals struct {
	Started   uint64
	Succeeded uint64
	Failed    uint64
}

// Totals returns the aggregate task counters.
func (m *Monitor) Totals() Totals {
	return Totals{
		Started:   m.tasksStarted.Load(),
		Succeeded: m.tasksSucceeded.Load(),
		Failed:    m.tasksFailed.Load(),
	}
}
