package queue

import (
	"context"
	"testing"
	"time"

	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/message"
)

func TestFIFOOrdering(t *testing.T) {
	q := New(Options{MaxSize: 10, Mode: ModeFIFO})
	ctx := context.Background()
	for _, topic := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, message.NewBuilder(topic).Build()); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		env, err := q.Dequeue(ctx, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if env.Topic != want {
			t.Fatalf("got %q want %q", env.Topic, want)
		}
	}
}

func TestPriorityOrdering(t *testing.T) {
	q := New(Options{MaxSize: 10, Mode: ModePriority})
	ctx := context.Background()
	low := message.NewBuilder("low").Priority(message.PriorityLow).Build()
	high := message.NewBuilder("high").Priority(message.PriorityHigh).Build()
	if err := q.Enqueue(ctx, low); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, high); err != nil {
		t.Fatal(err)
	}
	first, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if first.Topic != "high" {
		t.Fatalf("expected high priority message first, got %q", first.Topic)
	}
}

func TestOverflowReject(t *testing.T) {
	q := New(Options{MaxSize: 1, Mode: ModeFIFO, Overflow: OverflowReject})
	ctx := context.Background()
	if err := q.Enqueue(ctx, message.NewBuilder("a").Build()); err != nil {
		t.Fatal(err)
	}
	err := q.Enqueue(ctx, message.NewBuilder("b").Build())
	if !ferrors.Is(err, ferrors.QueueFull) {
		t.Fatalf("expected QueueFull, got %v", err)
	}
}

func TestOverflowDropOldest(t *testing.T) {
	q := New(Options{MaxSize: 1, Mode: ModeFIFO, Overflow: OverflowDropOldest})
	ctx := context.Background()
	if err := q.Enqueue(ctx, message.NewBuilder("a").Build()); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, message.NewBuilder("b").Build()); err != nil {
		t.Fatal(err)
	}
	if q.Size() != 1 {
		t.Fatalf("expected size 1, got %d", q.Size())
	}
	env, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if env.Topic != "b" {
		t.Fatalf("expected oldest dropped, got %q remaining", env.Topic)
	}
}

func TestDequeueTimeout(t *testing.T) {
	q := New(Options{MaxSize: 10, Mode: ModeFIFO})
	_, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	if !ferrors.Is(err, ferrors.QueueEmpty) {
		t.Fatalf("expected QueueEmpty on timeout, got %v", err)
	}
}

func TestDequeueWakesOnEnqueue(t *testing.T) {
	q := New(Options{MaxSize: 10, Mode: ModeFIFO})
	done := make(chan *message.Envelope, 1)
	go func() {
		env, err := q.Dequeue(context.Background(), time.Second)
		if err != nil {
			t.Error(err)
			return
		}
		done <- env
	}()
	time.Sleep(10 * time.Millisecond)
	if err := q.Enqueue(context.Background(), message.NewBuilder("x").Build()); err != nil {
		t.Fatal(err)
	}
	select {
	case env := <-done:
		if env.Topic != "x" {
			t.Fatalf("unexpected topic %q", env.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake on enqueue")
	}
}

func TestStopDrainsThenErrors(t *testing.T) {
	q := New(Options{MaxSize: 10, Mode: ModeFIFO})
	ctx := context.Background()
	if err := q.Enqueue(ctx, message.NewBuilder("a").Build()); err != nil {
		t.Fatal(err)
	}
	q.Stop()
	if _, err := q.Dequeue(ctx, time.Second); err != nil {
		t.Fatalf("expected queued message to drain despite stop: %v", err)
	}
	if _, err := q.Dequeue(ctx, time.Second); !ferrors.Is(err, ferrors.QueueStopped) {
		t.Fatalf("expected QueueStopped once drained, got %v", err)
	}
}

func TestStatsAndClear(t *testing.T) {
	q := New(Options{MaxSize: 10, Mode: ModeFIFO})
	ctx := context.Background()
	if err := q.Enqueue(ctx, message.NewBuilder("a").Build()); err != nil {
		t.Fatal(err)
	}
	if s := q.Stats(); s.Enqueued != 1 || s.Size != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
	q.Clear()
	if !q.Empty() {
		t.Fatalf("expected queue to be empty after clear")
	}
}
