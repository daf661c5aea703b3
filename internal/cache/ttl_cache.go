// Package cache provides the small in-memory TTL caches the engine keeps
// per process: recovered streak values and the emitter's dedupe window.
package cache

import (
	"sync"
	"time"
)

// Cache is the surface handlers depend on. Len is part of the contract so
// callers can bound-check a window without reaching into internals.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Len() int
}

// TTLCache keeps values until their deadline passes. A zero or negative ttl
// stores the value without a deadline. Expired entries are evicted lazily on
// read; there is no background sweeper, which is fine for the small keyspaces
// this process holds.
type TTLCache[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]item[V]
}

type item[V any] struct {
	value    V
	deadline time.Time
}

func (i item[V]) expired(at time.Time) bool {
	return !i.deadline.IsZero() && at.After(i.deadline)
}

func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{items: make(map[K]item[V])}
}

// Get returns a live value. An expired entry is deleted and reported as a
// miss.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if entry.expired(time.Now()) {
		delete(c.items, key)
		return zero, false
	}
	return entry.value, true
}

// Set stores a value for ttl.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if c == nil {
		return
	}
	stored := item[V]{value: value}
	if ttl > 0 {
		stored.deadline = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = stored
	c.mu.Unlock()
}

// Delete removes a cached entry.
func (c *TTLCache[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len reports the number of entries not yet evicted.
func (c *TTLCache[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
