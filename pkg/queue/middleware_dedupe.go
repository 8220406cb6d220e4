package queue

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupeMiddleware skips next() when ctx.Metadata["job_id"] was already seen
// within Window; otherwise it records the key and proceeds. The seen-key
// cache is LRU-bounded (adopted from the pack's storacha-piri dependency on
// hashicorp/golang-lru, which the teacher itself does not use) so a long-
// running worker's dedupe window can't grow without bound; expired entries
// are reclaimed lazily on the next insert that evicts them.
type DedupeMiddleware struct {
	Window   time.Duration
	Capacity int

	once  sync.Once
	mu    sync.Mutex
	cache *lru.Cache[string, time.Time]
}

func (m *DedupeMiddleware) init() {
	m.once.Do(func() {
		capacity := m.Capacity
		if capacity < 1 {
			capacity = 10_000
		}
		m.cache, _ = lru.New[string, time.Time](capacity)
	})
}

func (m *DedupeMiddleware) Handle(ctx *Context, next Next) error {
	m.init()

	key, ok := ctx.Metadata["job_id"].(string)
	if !ok || key == "" {
		return next()
	}

	m.mu.Lock()
	seenAt, found := m.cache.Get(key)
	fresh := found && time.Since(seenAt) < m.Window
	if !fresh {
		m.cache.Add(key, time.Now())
	}
	m.mu.Unlock()

	if fresh {
		return nil
	}
	return next()
}
