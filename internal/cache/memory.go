package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is an in-process Cache. Expired entries are dropped lazily on
// read and in bulk whenever a write would exceed maxSize; if the cache is
// still full after that, the entry closest to expiry is evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	maxSize int
	now     func() time.Time
}

// NewMemoryCache creates a cache bounded to maxSize entries. Zero or
// negative means unbounded.
func NewMemoryCache(maxSize int) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*memoryEntry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if entry.expired(c.now()) {
		c.mu.Lock()
		// re-check under the write lock; a concurrent Set may have replaced it
		if current, ok := c.entries[key]; ok && current == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := c.now()
	entry := &memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLocked(now)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]*memoryEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked makes room for one entry. Caller must hold c.mu.
func (c *MemoryCache) evictLocked(now time.Time) {
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxSize {
		return
	}

	var victim string
	var victimExpiry time.Time
	first := true
	for k, e := range c.entries {
		// entries without expiry are evicted last
		if first || (!e.expiresAt.IsZero() && (victimExpiry.IsZero() || e.expiresAt.Before(victimExpiry))) {
			victim, victimExpiry, first = k, e.expiresAt, false
		}
	}
	delete(c.entries, victim)
}

var _ Cache = (*MemoryCache)(nil)
