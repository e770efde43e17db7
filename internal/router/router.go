// Package router implements the subscription registry:
// pattern-matched dispatch with priority ordering and per-subscription
// filters.
package router

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/logging"
	"github.com/oriys/novafabric/internal/message"
	"github.com/oriys/novafabric/internal/topic"
)

// DefaultPriority is used when a caller does not specify one. Priority
// is a plain signed int so callers can pick any range that suits them.
const DefaultPriority = 5

// Callback handles a routed message. It must not block for long; the
// router invokes callbacks synchronously on the dispatching goroutine
// (never under its internal lock).
type Callback func(env *message.Envelope) error

// Filter returns false to skip delivery to the associated callback without
// counting it as a failure.
type Filter func(env *message.Envelope) bool

type subscription struct {
	id       uint64
	pattern  topic.Pattern
	callback Callback
	filter   Filter
	priority int
}

// Router stores subscriptions and routes messages to matching callbacks.
type Router struct {
	mu       sync.RWMutex
	subs     map[uint64]*subscription
	nextID   atomic.Uint64
	failures atomic.Uint64
}

// New creates an empty router.
func New() *Router {
	return &Router{subs: make(map[uint64]*subscription)}
}

// Subscribe registers a callback against pattern. priority defaults to
// DefaultPriority when zero is passed by callers that don't care.
func (r *Router) Subscribe(pattern string, cb Callback, filter Filter, priority int) (uint64, error) {
	if cb == nil {
		return 0, ferrors.New(ferrors.SubscriptionFailed, "router.Subscribe", "callback must not be nil")
	}
	p, err := topic.Compile(pattern)
	if err != nil {
		return 0, err
	}
	if priority == 0 {
		priority = DefaultPriority
	}
	id := r.nextID.Add(1)
	r.mu.Lock()
	r.subs[id] = &subscription{id: id, pattern: p, callback: cb, filter: filter, priority: priority}
	r.mu.Unlock()
	return id, nil
}

// Unsubscribe removes a subscription by id.
func (r *Router) Unsubscribe(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; !ok {
		return ferrors.New(ferrors.SubscriptionNotFound, "router.Unsubscribe", "no such subscription")
	}
	delete(r.subs, id)
	return nil
}

// Route invokes every subscription whose pattern matches the message's
// topic, in (priority desc, id asc) order, skipping filtered-out
// subscriptions without counting them as failures. Callback errors are
// recorded and logged but never abort dispatch to remaining subscriptions
// so one bad subscriber can't block the rest.
func (r *Router) Route(env *message.Envelope) (matched int, err error) {
	matching := r.matchingSubscriptions(env.Topic)
	if len(matching) == 0 {
		return 0, nil
	}
	for _, sub := range matching {
		if sub.filter != nil && !sub.filter(env) {
			continue
		}
		matched++
		if cbErr := sub.callback(env); cbErr != nil {
			r.failures.Add(1)
			logging.Op().Warn("subscription callback failed",
				"subscription_id", sub.id, "topic", env.Topic, "error", cbErr)
		}
	}
	return matched, nil
}

func (r *Router) matchingSubscriptions(t string) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.pattern.Match(t) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority > out[j].priority
		}
		return out[i].id < out[j].id
	})
	return out
}

// FailureCount returns the number of callback invocations that returned an
// error since the router was created or last reset.
func (r *Router) FailureCount() uint64 { return r.failures.Load() }

// SubscriptionCount returns the number of live subscriptions.
func (r *Router) SubscriptionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
