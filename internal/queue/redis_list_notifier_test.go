package queue

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // isolated DB for tests
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available, skipping: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisListNotifierNotifyAndSubscribe(t *testing.T) {
	client := newTestRedisClient(t)
	client.Del(context.Background(), redisListPrefix+string(Name("orders")))

	n := NewRedisListNotifier(client)
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := n.Subscribe(ctx, Name("orders"))
	time.Sleep(50 * time.Millisecond)

	if err := n.Notify(ctx, Name("orders")); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("expected notification on subscribe channel")
	}
}

func TestRedisListNotifierSignalPersistsWithoutSubscriber(t *testing.T) {
	client := newTestRedisClient(t)
	client.Del(context.Background(), redisListPrefix+string(Name("orders")))

	n := NewRedisListNotifier(client)
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Notify(ctx, Name("orders")); err != nil {
		t.Fatalf("notify: %v", err)
	}

	ch := n.Subscribe(ctx, Name("orders"))
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("expected pre-subscribe signal to survive in the list")
	}
}

func TestRedisListNotifierLoadBalances(t *testing.T) {
	client := newTestRedisClient(t)
	client.Del(context.Background(), redisListPrefix+string(Name("orders")))

	n := NewRedisListNotifier(client)
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1 := n.Subscribe(ctx, Name("orders"))
	ch2 := n.Subscribe(ctx, Name("orders"))
	time.Sleep(50 * time.Millisecond)

	if err := n.Notify(ctx, Name("orders")); err != nil {
		t.Fatalf("notify: %v", err)
	}

	received := 0
	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()
	for received < 2 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-timer.C:
			goto done
		}
	}
done:
	if received != 1 {
		t.Fatalf("expected exactly one subscriber to receive the signal, got %d", received)
	}
}

func TestRedisListNotifierCloseClosesSubscriberChannels(t *testing.T) {
	client := newTestRedisClient(t)
	n := NewRedisListNotifier(client)

	ch := n.Subscribe(context.Background(), Name("orders"))
	time.Sleep(50 * time.Millisecond)

	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel closed after Close")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("channel was never closed")
	}

	if err := n.Close(); err != nil {
		t.Fatalf("double close should not fail: %v", err)
	}
}

func TestQueueWakesFromRedisListNotifier(t *testing.T) {
	client := newTestRedisClient(t)
	client.Del(context.Background(), redisListPrefix+string(Name("wake-test")))

	producerNotifier := NewRedisListNotifier(client)
	defer producerNotifier.Close()
	consumerNotifier := NewRedisListNotifier(client)
	defer consumerNotifier.Close()

	q := New(Options{MaxSize: 16, Notifier: consumerNotifier, Name: Name("wake-test")})
	defer q.Stop()

	time.Sleep(50 * time.Millisecond)
	if err := producerNotifier.Notify(context.Background(), Name("wake-test")); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case <-q.signal:
	case <-time.After(3 * time.Second):
		t.Fatal("queue was never woken by the external notifier signal")
	}
}
