package task

import (
	"testing"
	"time"

	"github.com/oriys/novafabric/internal/ferrors"
)

func TestNewTaskDefaults(t *testing.T) {
	tk := New("send_email", nil, nil)
	if tk.State != StatePending {
		t.Fatalf("expected pending state, got %s", tk.State)
	}
	if tk.Config.MaxRetries != 3 {
		t.Fatalf("expected default max retries 3, got %d", tk.Config.MaxRetries)
	}
}

func TestLegalTransitions(t *testing.T) {
	tk := New("job", nil, nil)
	steps := []State{StateQueued, StateRunning, StateSucceeded}
	for _, s := range steps {
		if err := tk.Transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
}

func TestIllegalTransition(t *testing.T) {
	tk := New("job", nil, nil)
	if err := tk.Transition(StateSucceeded); !ferrors.Is(err, ferrors.InvalidTransition) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
}

func TestRetryLoopsBackToQueued(t *testing.T) {
	tk := New("job", nil, nil)
	if err := tk.Transition(StateQueued); err != nil {
		t.Fatal(err)
	}
	if err := tk.Transition(StateRunning); err != nil {
		t.Fatal(err)
	}
	if err := tk.Transition(StateRetrying); err != nil {
		t.Fatal(err)
	}
	if err := tk.Transition(StateQueued); err != nil {
		t.Fatalf("retrying must be able to re-queue: %v", err)
	}
}

func TestExpiredAndDue(t *testing.T) {
	tk := New("job", nil, nil)
	if tk.Expired() {
		t.Fatalf("task with zero Expires should never expire")
	}
	tk.Config.Expires = time.Now().Add(-time.Second)
	if !tk.Expired() {
		t.Fatalf("expected task to be expired")
	}

	if !tk.Due() {
		t.Fatalf("task with zero ETA should be due immediately")
	}
	tk.Config.ETA = time.Now().Add(time.Hour)
	if tk.Due() {
		t.Fatalf("task with future ETA should not be due yet")
	}
}

func TestNextRetryDelayBacksOff(t *testing.T) {
	tk := New("job", &Config{RetryDelay: 100 * time.Millisecond, RetryBackoffMultiplier: 2}, nil)
	tk.Attempt = 0
	if d := tk.NextRetryDelay(); d != 100*time.Millisecond {
		t.Fatalf("expected first delay 100ms, got %v", d)
	}
	tk.Attempt = 2
	if d := tk.NextRetryDelay(); d != 400*time.Millisecond {
		t.Fatalf("expected backoff 400ms after 2 attempts, got %v", d)
	}
}

func TestHasTag(t *testing.T) {
	tk := New("job", &Config{Tags: []string{"urgent", "billing"}}, nil)
	if !tk.HasTag("billing") {
		t.Fatalf("expected tag to be present")
	}
	if tk.HasTag("missing") {
		t.Fatalf("expected tag to be absent")
	}
}
