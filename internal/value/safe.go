package value

import "sync"

// ThreadSafe wraps a Container with a read-write lock, satisfying
// a thread-safe container exposed as its own type rather than a flag on Container.
type ThreadSafe struct {
	mu sync.RWMutex
	c  *Container
}

// NewThreadSafe wraps an existing container (or a fresh one if nil).
func NewThreadSafe(c *Container) *ThreadSafe {
	if c == nil {
		c = New()
	}
	return &ThreadSafe{c: c}
}

func (t *ThreadSafe) Add(key string, v Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.c.Add(key, v)
}

func (t *ThreadSafe) Get(key string) (Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.c.Get(key)
}

func (t *ThreadSafe) Has(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.c.Has(key)
}

func (t *ThreadSafe) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.c.Keys()
}

func (t *ThreadSafe) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.c.Size()
}

func (t *ThreadSafe) Serialize(format Format) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.c.Serialize(format)
}

// Snapshot returns a point-in-time copy safe to read without further
// locking (used when handing a container to a handler callback).
func (t *ThreadSafe) Snapshot() *Container {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cp := New()
	for _, k := range t.c.Keys() {
		v, _ := t.c.Get(k)
		cp.Add(k, v)
	}
	return cp
}
