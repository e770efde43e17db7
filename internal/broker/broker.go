// Package broker implements the named-route registry: a layer over
// the router that lets routes be named, enabled/disabled, prioritized,
// and inspected independently of the underlying subscriptions.
package broker

import (
	"context"
	"sort"
	"sync"

	"github.com/oriys/novafabric/internal/bus"
	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/message"
	"github.com/oriys/novafabric/internal/router"
)

// Route is a named binding between a topic pattern and a callback.
type Route struct {
	Name     string
	Pattern  string
	Priority int
	Enabled  bool

	subID uint64
	calls uint64
	fails uint64
}

// Snapshot is a read-only copy of a route's configuration and counters.
type Snapshot struct {
	Name     string
	Pattern  string
	Priority int
	Enabled  bool
	Calls    uint64
	Failures uint64
}

// Config bounds the broker's route registry.
type Config struct {
	MaxRoutes int // 0 means unbounded
}

// Broker layers a named-route registry over a Bus's router.
type Broker struct {
	b   *bus.Bus
	cfg Config

	mu     sync.RWMutex
	routes map[string]*Route
}

// New creates a Broker bound to b.
func New(b *bus.Bus, cfg Config) *Broker {
	return &Broker{b: b, cfg: cfg, routes: make(map[string]*Route)}
}

// AddRoute registers a named route. name must be unique; a duplicate name
// fails with ferrors.DuplicateRoute.
func (br *Broker) AddRoute(name, pattern string, priority int, cb router.Callback) error {
	br.mu.Lock()
	defer br.mu.Unlock()
	if _, exists := br.routes[name]; exists {
		return ferrors.New(ferrors.DuplicateRoute, "broker.AddRoute", "route already exists: "+name)
	}
	if br.cfg.MaxRoutes > 0 && len(br.routes) >= br.cfg.MaxRoutes {
		return ferrors.New(ferrors.QueueFull, "broker.AddRoute", "maximum route count reached")
	}

	route := &Route{Name: name, Pattern: pattern, Priority: priority, Enabled: true}
	wrapped := func(env *message.Envelope) error {
		br.mu.RLock()
		enabled := route.Enabled
		br.mu.RUnlock()
		if !enabled {
			return nil
		}
		err := cb(env)
		br.mu.Lock()
		route.calls++
		if err != nil {
			route.fails++
		}
		br.mu.Unlock()
		return err
	}

	id, err := br.b.Subscribe(pattern, wrapped, nil, priority)
	if err != nil {
		return err
	}
	route.subID = id
	br.routes[name] = route
	return nil
}

// RemoveRoute unregisters a named route and its underlying subscription.
func (br *Broker) RemoveRoute(name string) error {
	br.mu.Lock()
	route, ok := br.routes[name]
	if !ok {
		br.mu.Unlock()
		return ferrors.New(ferrors.NoRouteFound, "broker.RemoveRoute", "no such route: "+name)
	}
	delete(br.routes, name)
	br.mu.Unlock()
	return br.b.Unsubscribe(route.subID)
}

// EnableRoute re-activates a previously disabled route.
func (br *Broker) EnableRoute(name string) error { return br.setEnabled(name, true) }

// DisableRoute deactivates a route without removing it; matching messages
// are silently skipped until re-enabled.
func (br *Broker) DisableRoute(name string) error { return br.setEnabled(name, false) }

func (br *Broker) setEnabled(name string, enabled bool) error {
	br.mu.Lock()
	defer br.mu.Unlock()
	route, ok := br.routes[name]
	if !ok {
		return ferrors.New(ferrors.NoRouteFound, "broker.setEnabled", "no such route: "+name)
	}
	route.Enabled = enabled
	return nil
}

// Publish publishes env through the underlying bus; routing happens
// asynchronously via the named routes' subscriptions.
func (br *Broker) Publish(ctx context.Context, env *message.Envelope) error {
	return br.b.Publish(ctx, env)
}

// GetRoute returns a snapshot of a single named route.
func (br *Broker) GetRoute(name string) (Snapshot, error) {
	br.mu.RLock()
	defer br.mu.RUnlock()
	route, ok := br.routes[name]
	if !ok {
		return Snapshot{}, ferrors.New(ferrors.NoRouteFound, "broker.GetRoute", "no such route: "+name)
	}
	return snapshotOf(route), nil
}

// GetRoutes returns all routes ordered by (priority desc, name asc).
func (br *Broker) GetRoutes() []Snapshot {
	br.mu.RLock()
	defer br.mu.RUnlock()
	out := make([]Snapshot, 0, len(br.routes))
	for _, route := range br.routes {
		out = append(out, snapshotOf(route))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ClearRoutes removes every registered route.
func (br *Broker) ClearRoutes() error {
	br.mu.Lock()
	names := make([]string, 0, len(br.routes))
	for name := range br.routes {
		names = append(names, name)
	}
	br.mu.Unlock()
	for _, name := range names {
		if err := br.RemoveRoute(name); err != nil {
			return err
		}
	}
	return nil
}

func snapshotOf(r *Route) Snapshot {
	return Snapshot{
		Name:     r.Name,
		Pattern:  r.Pattern,
		Priority: r.Priority,
		Enabled:  r.Enabled,
		Calls:    r.calls,
		Failures: r.fails,
	}
}
