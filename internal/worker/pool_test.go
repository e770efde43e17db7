package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oriys/novafabric/internal/backend"
	"github.com/oriys/novafabric/internal/resultbackend"
	"github.com/oriys/novafabric/internal/task"
	"github.com/oriys/novafabric/internal/taskqueue"
	"github.com/oriys/novafabric/internal/value"
)

func newTestPool(t *testing.T, cfg Config) (*Pool, *taskqueue.Registry, *resultbackend.Backend) {
	t.Helper()
	tq := taskqueue.New()
	rb := resultbackend.New(time.Hour)
	be := backend.NewStandalone(4)
	if err := be.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	p := New(tq, rb, be, cfg)
	t.Cleanup(func() {
		p.Stop()
		tq.Stop()
		rb.Stop()
		be.Shutdown(context.Background())
	})
	return p, tq, rb
}

func TestHandlerSuccessStoresResult(t *testing.T) {
	p, tq, rb := newTestPool(t, Config{Concurrency: 2, PollInterval: 10 * time.Millisecond})
	p.RegisterHandler("greet", func(tc *TaskContext) error {
		out := value.New()
		out.Add("greeting", value.String("hi"))
		tc.SetResult(out)
		return nil
	})
	p.Start()

	tk := task.New("greet", &task.Config{QueueName: "default", Timeout: time.Second}, nil)
	if err := tq.Enqueue(tk); err != nil {
		t.Fatal(err)
	}

	waitForState(t, rb, tk.ID, task.StateSucceeded)
	rec, err := rb.Get(tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	greeting, ok := rec.Result.GetString("greeting")
	if !ok || greeting != "hi" {
		t.Fatalf("expected result to be stored, got %+v", rec)
	}
}

func TestHandlerRetriesThenFails(t *testing.T) {
	p, tq, rb := newTestPool(t, Config{Concurrency: 2, PollInterval: 5 * time.Millisecond})
	attempts := 0
	p.RegisterHandler("flaky", func(tc *TaskContext) error {
		attempts++
		return errors.New("boom")
	})
	p.Start()

	tk := task.New("flaky", &task.Config{
		QueueName:              "default",
		Timeout:                time.Second,
		MaxRetries:             2,
		RetryDelay:             5 * time.Millisecond,
		RetryBackoffMultiplier: 1,
	}, nil)
	if err := tq.Enqueue(tk); err != nil {
		t.Fatal(err)
	}

	waitForState(t, rb, tk.ID, task.StateFailed)
	if attempts < 3 {
		t.Fatalf("expected at least 3 attempts (1 + 2 retries), got %d", attempts)
	}
}

func TestMissingHandlerFailsTask(t *testing.T) {
	p, tq, rb := newTestPool(t, Config{Concurrency: 1, PollInterval: 5 * time.Millisecond})
	p.Start()

	tk := task.New("unregistered", &task.Config{QueueName: "default", Timeout: time.Second}, nil)
	if err := tq.Enqueue(tk); err != nil {
		t.Fatal(err)
	}
	waitForState(t, rb, tk.ID, task.StateFailed)
}

func waitForState(t *testing.T, rb *resultbackend.Backend, taskID string, want task.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, err := rb.Get(taskID); err == nil && rec.State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not reach state %s in time", taskID, want)
}
