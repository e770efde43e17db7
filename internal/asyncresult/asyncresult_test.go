package asyncresult

import (
	"context"
	"testing"
	"time"

	"github.com/oriys/novafabric/internal/resultbackend"
	"github.com/oriys/novafabric/internal/task"
	"github.com/oriys/novafabric/internal/taskqueue"
	"github.com/oriys/novafabric/internal/value"
)

func TestGetReturnsResultOnSuccess(t *testing.T) {
	rb := resultbackend.New(time.Hour)
	defer rb.Stop()
	tq := taskqueue.New()
	defer tq.Stop()

	ar := New("t1", rb, tq)
	go func() {
		time.Sleep(20 * time.Millisecond)
		payload := value.New()
		payload.Add("x", value.Int64(1))
		rb.StoreResult("t1", payload)
	}()

	result, err := ar.Get(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	v, ok := result.GetInt64("x")
	if !ok || v != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !ar.IsSuccessful() || !ar.IsReady() {
		t.Fatalf("expected successful+ready state")
	}
}

func TestIsFailedIncludesCancelled(t *testing.T) {
	rb := resultbackend.New(time.Hour)
	defer rb.Stop()
	tq := taskqueue.New()
	defer tq.Stop()

	rb.StoreState("t1", task.StateCancelled)
	ar := New("t1", rb, tq)
	if !ar.IsFailed() {
		t.Fatalf("expected cancelled task to count as failed")
	}
}

func TestRevokeCancelsQueuedTask(t *testing.T) {
	rb := resultbackend.New(time.Hour)
	defer rb.Stop()
	tq := taskqueue.New()
	defer tq.Stop()

	tk := task.New("job", &task.Config{QueueName: "default"}, nil)
	if err := tq.Enqueue(tk); err != nil {
		t.Fatal(err)
	}
	ar := New(tk.ID, rb, tq)
	if err := ar.Revoke(); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, _ := tq.Get(tk.ID)
	if got.State != task.StateCancelled {
		t.Fatalf("expected task to be cancelled")
	}
}
