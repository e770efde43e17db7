package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oriys/novafabric/internal/backend"
	"github.com/oriys/novafabric/internal/bus"
	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/message"
	"github.com/oriys/novafabric/internal/queue"
)

func newTestBus(t *testing.T) *bus.Bus {
	t.Helper()
	be := backend.NewStandalone(8)
	if err := be.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { be.Shutdown(context.Background()) })
	b := bus.New(bus.Config{Backend: be, Workers: 2, QueueSize: 32, QueueMode: queue.ModeFIFO})
	b.Start()
	t.Cleanup(b.Stop)
	return b
}

func TestAddRouteDuplicate(t *testing.T) {
	br := New(newTestBus(t), Config{})
	cb := func(env *message.Envelope) error { return nil }
	if err := br.AddRoute("r1", "x", 5, cb); err != nil {
		t.Fatal(err)
	}
	if err := br.AddRoute("r1", "x", 5, cb); !ferrors.Is(err, ferrors.DuplicateRoute) {
		t.Fatalf("expected DuplicateRoute, got %v", err)
	}
}

func TestRouteDispatchAndDisable(t *testing.T) {
	br := New(newTestBus(t), Config{})
	var mu sync.Mutex
	count := 0
	if err := br.AddRoute("r1", "x", 5, func(env *message.Envelope) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	publishAndWait := func() {
		if err := br.Publish(context.Background(), message.NewBuilder("x").Build()); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	publishAndWait()
	mu.Lock()
	got := count
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected 1 dispatch, got %d", got)
	}

	if err := br.DisableRoute("r1"); err != nil {
		t.Fatal(err)
	}
	publishAndWait()
	mu.Lock()
	got = count
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected dispatch to be skipped while disabled, got %d", got)
	}

	if err := br.EnableRoute("r1"); err != nil {
		t.Fatal(err)
	}
	publishAndWait()
	mu.Lock()
	got = count
	mu.Unlock()
	if got != 2 {
		t.Fatalf("expected dispatch to resume after re-enable, got %d", got)
	}
}

func TestGetRoutesOrdering(t *testing.T) {
	br := New(newTestBus(t), Config{})
	cb := func(env *message.Envelope) error { return nil }
	if err := br.AddRoute("low", "x", 1, cb); err != nil {
		t.Fatal(err)
	}
	if err := br.AddRoute("high", "x", 10, cb); err != nil {
		t.Fatal(err)
	}
	routes := br.GetRoutes()
	if len(routes) != 2 || routes[0].Name != "high" {
		t.Fatalf("expected high-priority route first, got %+v", routes)
	}
}

func TestMaxRoutes(t *testing.T) {
	br := New(newTestBus(t), Config{MaxRoutes: 1})
	cb := func(env *message.Envelope) error { return nil }
	if err := br.AddRoute("r1", "x", 1, cb); err != nil {
		t.Fatal(err)
	}
	if err := br.AddRoute("r2", "x", 1, cb); err == nil {
		t.Fatalf("expected error once max routes reached")
	}
}

func TestRemoveRouteNotFound(t *testing.T) {
	br := New(newTestBus(t), Config{})
	if err := br.RemoveRoute("missing"); !ferrors.Is(err, ferrors.NoRouteFound) {
		t.Fatalf("expected NoRouteFound, got %v", err)
	}
}
