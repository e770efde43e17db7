package resultbackend

import (
	"context"
	"testing"
	"time"

	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/task"
	"github.com/oriys/novafabric/internal/value"
)

func TestStoreAndGet(t *testing.T) {
	b := New(time.Hour)
	defer b.Stop()

	b.StoreState("t1", task.StateRunning)
	rec, err := b.Get("t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.State != task.StateRunning {
		t.Fatalf("expected running state, got %s", rec.State)
	}
}

func TestStoreResultMarksSucceeded(t *testing.T) {
	b := New(time.Hour)
	defer b.Stop()

	payload := value.New()
	payload.Add("ok", value.Bool(true))
	b.StoreResult("t1", payload)

	rec, err := b.Get("t1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != task.StateSucceeded || rec.Progress != 100 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestWaitForResultUnblocksOnTerminalState(t *testing.T) {
	b := New(time.Hour)
	defer b.Stop()

	done := make(chan Record, 1)
	go func() {
		rec, err := b.WaitForResult(context.Background(), "t1", time.Second)
		if err != nil {
			t.Error(err)
			return
		}
		done <- rec
	}()

	time.Sleep(20 * time.Millisecond)
	b.StoreError("t1", "boom")

	select {
	case rec := <-done:
		if rec.State != task.StateFailed || rec.Error != "boom" {
			t.Fatalf("unexpected record: %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForResult did not unblock on terminal state")
	}
}

func TestWaitForResultTimeout(t *testing.T) {
	b := New(time.Hour)
	defer b.Stop()
	_, err := b.WaitForResult(context.Background(), "unknown", 20*time.Millisecond)
	if !ferrors.Is(err, ferrors.Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	// Built directly so no background sweep runs and the explicit
	// CleanupExpired call is the one that removes the record.
	b := &Backend{records: make(map[string]*record), ttl: 10 * time.Millisecond, stopCh: make(chan struct{})}
	defer b.Stop()
	b.StoreState("t1", task.StateSucceeded)
	time.Sleep(30 * time.Millisecond)
	if n := b.CleanupExpired(); n != 1 {
		t.Fatalf("expected 1 expired record removed, got %d", n)
	}
}
