package router

import (
	"errors"
	"sync"
	"testing"

	"github.com/oriys/novafabric/internal/message"
)

func TestRouteWildcardScenario(t *testing.T) {
	r := New()
	var aCount, bCount int
	var mu sync.Mutex

	if _, err := r.Subscribe("user.*", func(env *message.Envelope) error {
		mu.Lock()
		aCount++
		mu.Unlock()
		return nil
	}, nil, DefaultPriority); err != nil {
		t.Fatalf("subscribe A: %v", err)
	}
	if _, err := r.Subscribe("user.#", func(env *message.Envelope) error {
		mu.Lock()
		bCount++
		mu.Unlock()
		return nil
	}, nil, DefaultPriority); err != nil {
		t.Fatalf("subscribe B: %v", err)
	}

	env := message.NewBuilder("user.created").Build()
	matched, err := r.Route(env)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if matched != 2 {
		t.Fatalf("expected 2 matches, got %d", matched)
	}
	if aCount != 1 || bCount != 1 {
		t.Fatalf("expected both subscribers invoked once, got a=%d b=%d", aCount, bCount)
	}

	nested := message.NewBuilder("user.profile.updated").Build()
	matched, err = r.Route(nested)
	if err != nil {
		t.Fatalf("route nested: %v", err)
	}
	if matched != 1 {
		t.Fatalf("expected only '#' subscriber to match nested topic, got %d", matched)
	}
}

func TestRoutePriorityOrdering(t *testing.T) {
	r := New()
	var order []string
	record := func(name string) Callback {
		return func(env *message.Envelope) error {
			order = append(order, name)
			return nil
		}
	}
	if _, err := r.Subscribe("x", record("low"), nil, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Subscribe("x", record("high"), nil, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Subscribe("x", record("mid"), nil, 5); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Route(message.NewBuilder("x").Build()); err != nil {
		t.Fatal(err)
	}
	want := []string{"high", "mid", "low"}
	if len(order) != len(want) {
		t.Fatalf("got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v want %v", order, want)
		}
	}
}

func TestRouteFilterSkipsWithoutFailure(t *testing.T) {
	r := New()
	called := false
	if _, err := r.Subscribe("x", func(env *message.Envelope) error {
		called = true
		return nil
	}, func(env *message.Envelope) bool { return false }, DefaultPriority); err != nil {
		t.Fatal(err)
	}
	matched, err := r.Route(message.NewBuilder("x").Build())
	if err != nil {
		t.Fatal(err)
	}
	if matched != 0 || called {
		t.Fatalf("expected filtered subscription to be skipped")
	}
	if r.FailureCount() != 0 {
		t.Fatalf("filtered delivery must not count as a failure")
	}
}

func TestRouteFailureIsolation(t *testing.T) {
	r := New()
	secondCalled := false
	if _, err := r.Subscribe("x", func(env *message.Envelope) error {
		return errors.New("boom")
	}, nil, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Subscribe("x", func(env *message.Envelope) error {
		secondCalled = true
		return nil
	}, nil, 1); err != nil {
		t.Fatal(err)
	}
	matched, err := r.Route(message.NewBuilder("x").Build())
	if err != nil {
		t.Fatal(err)
	}
	if matched != 2 {
		t.Fatalf("expected both subscriptions to be attempted, got %d", matched)
	}
	if !secondCalled {
		t.Fatalf("failure in first callback must not prevent delivery to the second")
	}
	if r.FailureCount() != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", r.FailureCount())
	}
}

func TestUnsubscribe(t *testing.T) {
	r := New()
	id, err := r.Subscribe("x", func(env *message.Envelope) error { return nil }, nil, DefaultPriority)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Unsubscribe(id); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := r.Unsubscribe(id); err == nil {
		t.Fatalf("expected error unsubscribing twice")
	}
	matched, err := r.Route(message.NewBuilder("x").Build())
	if err != nil {
		t.Fatal(err)
	}
	if matched != 0 {
		t.Fatalf("expected no matches after unsubscribe")
	}
}
