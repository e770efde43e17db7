// Package bus implements the in-process message bus: a worker-dispatch
// pool layered over a queue and router, with request/reply correlation
// and aggregate statistics.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oriys/novafabric/internal/backend"
	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/logging"
	"github.com/oriys/novafabric/internal/message"
	"github.com/oriys/novafabric/internal/queue"
	"github.com/oriys/novafabric/internal/router"
)

// Config configures a Bus. Backend is required: every dispatch runs
// through its Executor, so the backend controls concurrency, monitoring,
// and tracing for message delivery the same way it does for task
// execution in the worker pool.
type Config struct {
	Backend           backend.Backend
	Workers           int
	QueueSize         int
	QueueMode         queue.Mode
	Overflow          queue.OverflowPolicy
	ProcessingTimeout time.Duration
	DrainTimeout      time.Duration
	Notifier          queue.Notifier
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = 30 * time.Second
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 10 * time.Second
	}
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Published      uint64
	Processed      uint64
	Failed         uint64
	Dropped        uint64
	SentRemote     uint64
	ReceivedRemote uint64
}

// Bus composes a queue, a router, and a worker pool into the publish/
// subscribe/request surface.
type Bus struct {
	cfg    Config
	q      *queue.Queue
	r      *router.Router
	be     backend.Backend
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool

	pendingMu sync.Mutex
	pending   map[string]chan *message.Envelope

	published  uint64
	processed  uint64
	failed     uint64
	sentRemote uint64
	recvRemote uint64
	statsMu    sync.Mutex
}

// New creates a Bus with the given configuration.
func New(cfg Config) *Bus {
	cfg.setDefaults()
	return &Bus{
		cfg: cfg,
		q: queue.New(queue.Options{
			MaxSize:  cfg.QueueSize,
			Mode:     cfg.QueueMode,
			Overflow: cfg.Overflow,
			Notifier: cfg.Notifier,
			Name:     "bus",
		}),
		r:       router.New(),
		be:      cfg.Backend,
		stopCh:  make(chan struct{}),
		pending: make(map[string]chan *message.Envelope),
	}
}

// Start launches the worker-dispatch pool.
func (b *Bus) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true
	for i := 0; i < b.cfg.Workers; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}
	logging.Op().Info("bus started", "workers", b.cfg.Workers)
}

// Stop drains in-flight workers, waiting up to DrainTimeout before
// returning regardless of whether drain completed.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()

	b.q.Stop()
	close(b.stopCh)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(b.cfg.DrainTimeout):
		logging.Op().Warn("bus stop: drain timeout exceeded")
	}
}

// Publish enqueues env for asynchronous dispatch to matching subscribers.
func (b *Bus) Publish(ctx context.Context, env *message.Envelope) error {
	if err := b.q.Enqueue(ctx, env); err != nil {
		return err
	}
	b.statsMu.Lock()
	b.published++
	b.statsMu.Unlock()
	return nil
}

// Subscribe registers cb against pattern, delegating to the router.
func (b *Bus) Subscribe(pattern string, cb router.Callback, filter router.Filter, priority int) (uint64, error) {
	return b.r.Subscribe(pattern, cb, filter, priority)
}

// Unsubscribe removes a subscription previously returned by Subscribe.
func (b *Bus) Unsubscribe(id uint64) error { return b.r.Unsubscribe(id) }

// Request publishes env and blocks for a correlated reply (a message whose
// CorrelationID matches env.CorrelationID, which is set to env.ID when
// empty) up to timeout.
func (b *Bus) Request(ctx context.Context, env *message.Envelope, timeout time.Duration) (*message.Envelope, error) {
	if env.CorrelationID == "" {
		env.CorrelationID = env.ID
	}
	replyCh := make(chan *message.Envelope, 1)
	b.pendingMu.Lock()
	b.pending[env.CorrelationID] = replyCh
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, env.CorrelationID)
		b.pendingMu.Unlock()
	}()

	if err := b.Publish(ctx, env); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-time.After(timeout):
		return nil, ferrors.New(ferrors.ReceiveTimeout, "bus.Request", "timed out waiting for reply")
	case <-ctx.Done():
		return nil, ferrors.Wrap(ferrors.ReceiveTimeout, "bus.Request", ctx.Err())
	}
}

// Reply publishes env, resolving it to a pending Request with the same
// correlation id, if any.
func (b *Bus) Reply(ctx context.Context, env *message.Envelope) error {
	b.pendingMu.Lock()
	ch, ok := b.pending[env.CorrelationID]
	b.pendingMu.Unlock()
	if ok {
		select {
		case ch <- env:
		default:
		}
		return nil
	}
	return b.Publish(ctx, env)
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()
	workerID := fmt.Sprintf("bus-worker-%d", id)
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}
		env, err := b.q.Dequeue(context.Background(), 500*time.Millisecond)
		if err != nil {
			if ferrors.Is(err, ferrors.QueueStopped) {
				return
			}
			continue
		}
		b.dispatch(workerID, env)
	}
}

// dispatch routes env to matching subscribers through the backend's
// Executor, under a per-message ProcessingTimeout, recording the outcome
// against the backend's monitor the same way the worker pool records
// per-task outcomes.
func (b *Bus) dispatch(workerID string, env *message.Envelope) {
	if env.Expired() {
		b.statsMu.Lock()
		b.failed++
		b.statsMu.Unlock()
		logging.Op().Debug("dropping expired message", "id", env.ID, "topic", env.Topic)
		return
	}
	if env.Type == message.TypeReply && env.CorrelationID != "" {
		b.pendingMu.Lock()
		ch, ok := b.pending[env.CorrelationID]
		b.pendingMu.Unlock()
		if ok {
			select {
			case ch <- env:
			default:
			}
			b.statsMu.Lock()
			b.processed++
			b.statsMu.Unlock()
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ProcessingTimeout)
	defer cancel()

	var matched int
	err := b.be.Executor().Execute(ctx, env.ID, func(ctx context.Context) error {
		m, rerr := b.r.Route(env)
		matched = m
		return rerr
	})

	b.statsMu.Lock()
	success := err == nil && matched > 0
	if success {
		b.processed++
	} else {
		b.failed++
	}
	b.statsMu.Unlock()
	b.be.Monitoring().RecordWorkerActivity(workerID, success)

	if err != nil {
		if ctx.Err() != nil {
			logging.Op().Warn("message processing exceeded timeout", "id", env.ID, "topic", env.Topic)
		} else {
			logging.Op().Warn("message dispatch failed", "id", env.ID, "topic", env.Topic, "error", err)
		}
	}
}

// Stats returns a snapshot of bus-level counters.
func (b *Bus) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return Stats{
		Published:      b.published,
		Processed:      b.processed,
		Failed:         b.failed,
		Dropped:        b.q.Stats().Dropped,
		SentRemote:     b.sentRemote,
		ReceivedRemote: b.recvRemote,
	}
}

// MarkSentRemote records that a message was forwarded to a remote peer, for
// backends that bridge the bus across process boundaries.
func (b *Bus) MarkSentRemote() {
	b.statsMu.Lock()
	b.sentRemote++
	b.statsMu.Unlock()
}

// MarkReceivedRemote records that a message was received from a remote peer.
func (b *Bus) MarkReceivedRemote() {
	b.statsMu.Lock()
	b.recvRemote++
	b.statsMu.Unlock()
}
