// Package cache provides a small in-memory TTL cache used for identity
// and organisation lookups against the external ledger service.
package cache

import (
	"sync"
	"time"

	"github.com/crownlands/tenure/internal/clock"
)

type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Invalidate(key K)
	InvalidateAll()
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type ttlCache[K comparable, V any] struct {
	mu      sync.RWMutex
	clock   clock.Clock
	entries map[K]entry[V]
}

// NewTTLCache builds a clock-driven TTL cache. The clock is injected so
// expiry can be exercised deterministically with a fake clock.
func NewTTLCache[K comparable, V any](clk clock.Clock) Cache[K, V] {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &ttlCache[K, V]{
		clock:   clk,
		entries: make(map[K]entry[V]),
	}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.Invalidate(key)
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *ttlCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *ttlCache[K, V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}
