package queue

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisListPrefix = "novafabric:queue:list:"

// RedisListNotifier is a distributed, Redis-backed notifier built on
// LPUSH/BRPOP: signals persist in the list even when no consumer is
// listening, and BRPOP hands each signal to exactly one consumer,
// load-balancing wakeups across instances.
type RedisListNotifier struct {
	client *redis.Client
	mu     sync.Mutex
	subs   map[Name][]*redisListSub
	closed bool
}

type redisListSub struct {
	ch     chan struct{}
	cancel context.CancelFunc
}

func NewRedisListNotifier(client *redis.Client) *RedisListNotifier {
	return &RedisListNotifier{client: client, subs: make(map[Name][]*redisListSub)}
}

func (n *RedisListNotifier) Notify(ctx context.Context, name Name) error {
	return n.client.LPush(ctx, redisListPrefix+string(name), "1").Err()
}

func (n *RedisListNotifier) Subscribe(ctx context.Context, name Name) <-chan struct{} {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch
	}
	subCtx, cancel := context.WithCancel(ctx)
	rs := &redisListSub{ch: ch, cancel: cancel}
	n.subs[name] = append(n.subs[name], rs)
	n.mu.Unlock()

	key := redisListPrefix + string(name)

	go func() {
		defer func() {
			n.removeListSub(name, rs)
			select {
			case <-ch:
			default:
			}
			close(ch)
		}()

		for {
			select {
			case <-subCtx.Done():
				return
			default:
			}

			result, err := n.client.BRPop(subCtx, 1*time.Second, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if subCtx.Err() != nil {
					return
				}
				select {
				case <-subCtx.Done():
					return
				case <-time.After(100 * time.Millisecond):
				}
				continue
			}

			if len(result) >= 2 {
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch
}

func (n *RedisListNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	for _, subs := range n.subs {
		for _, s := range subs {
			s.cancel()
		}
	}
	n.subs = nil
	return nil
}

func (n *RedisListNotifier) removeListSub(name Name, target *redisListSub) {
	n.mu.Lock()
	defer n.mu.Unlock()
	subs := n.subs[name]
	for i, s := range subs {
		if s == target {
			n.subs[name] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
