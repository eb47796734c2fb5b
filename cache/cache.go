// Package cache keeps recent extraction results keyed by content digest.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a goroutine-safe LRU of values keyed by Key.
type Cache[V any] struct {
	entries *lru.Cache[string, V]
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache holding at most size values.
func New[V any](size int) (*Cache[V], error) {
	entries, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return &Cache[V]{entries: entries}, nil
}

// Key derives a cache key from file content and an options fingerprint,
// so the same bytes extracted with different options do not collide.
func Key(data []byte, fingerprint string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the value for key and records a hit or miss. A nil cache
// always misses.
func (c *Cache[V]) Get(key string) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}
	v, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Add stores v under key, evicting the least recently used entry when
// full.
func (c *Cache[V]) Add(key string, v V) {
	if c == nil {
		return
	}
	c.entries.Add(key, v)
}

// Len returns the number of cached values.
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

// Purge empties the cache.
func (c *Cache[V]) Purge() {
	if c == nil {
		return
	}
	c.entries.Purge()
}

// Stats returns the hit and miss counts.
func (c *Cache[V]) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
