// Package cache provides a small time-limited value cache. The bridge
// uses it to answer repeat OSC pings from the last result for a few
// seconds instead of round-tripping to the device.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value V
	at    int64 // unix millis
}

// TTL is a mutex-guarded map whose entries expire after a fixed duration.
// A TTL of zero means entries never expire.
type TTL[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	ttl     time.Duration
	maxSize int
}

// Options configures the cache.
type Options struct {
	TTL     time.Duration
	MaxSize int
}

// New creates a TTL cache.
func New[V any](opts Options) *TTL[V] {
	ttl := opts.TTL
	if ttl < 0 {
		ttl = 0
	}
	maxSize := opts.MaxSize
	if maxSize < 0 {
		maxSize = 0
	}
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached value if present and within TTL.
func (c *TTL[V]) Get(key string) (V, bool) {
	return c.GetAt(key, time.Now())
}

// GetAt looks up with an explicit timestamp (for testing).
func (c *TTL[V]) GetAt(key string, now time.Time) (V, bool) {
	var zero V
	if key == "" {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && now.UnixMilli()-e.at >= c.ttl.Milliseconds() {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Put stores a value with the current timestamp.
func (c *TTL[V]) Put(key string, value V) {
	c.PutAt(key, value, time.Now())
}

// PutAt stores with an explicit timestamp (for testing).
func (c *TTL[V]) PutAt(key string, value V, now time.Time) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	nowUnix := now.UnixMilli()
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLocked(nowUnix)
	}
	c.entries[key] = entry[V]{value: value, at: nowUnix}
}

// Invalidate drops a key.
func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries, expired ones included.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked removes expired entries; if nothing expired it removes the
// oldest entry so a Put always has room.
func (c *TTL[V]) evictLocked(nowUnix int64) {
	if c.ttl > 0 {
		for k, e := range c.entries {
			if nowUnix-e.at >= c.ttl.Milliseconds() {
				delete(c.entries, k)
			}
		}
		if len(c.entries) < c.maxSize {
			return
		}
	}
	var oldestKey string
	var oldestAt int64 = 1<<63 - 1
	for k, e := range c.entries {
		if e.at < oldestAt {
			oldestKey, oldestAt = k, e.at
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
