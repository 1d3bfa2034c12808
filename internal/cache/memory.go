package cache

import (
	"context"
	"sync"
	"time"

	"dwelligence/internal/model"
)

// MemoryCache is an in-process CommuteCache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]model.CommuteRecord
	ttl     time.Duration
	now     Clock
}

// NewMemoryCache creates an empty cache. A nil clock uses time.Now.
func NewMemoryCache(ttl time.Duration, clock Clock) *MemoryCache {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryCache{
		entries: make(map[Key]model.CommuteRecord),
		ttl:     ttl,
		now:     clock,
	}
}

func (c *MemoryCache) expired(r model.CommuteRecord, now time.Time) bool {
	return !now.Before(r.FetchedAt.Add(c.ttl))
}

// GetMany returns the live records among keys.
func (c *MemoryCache) GetMany(_ context.Context, keys []Key) (map[Key]model.CommuteRecord, error) {
	now := c.now()
	found := make(map[Key]model.CommuteRecord, len(keys))

	c.mu.RLock()
	for _, k := range keys {
		if r, ok := c.entries[k]; ok && !c.expired(r, now) {
			found[k] = r
		}
	}
	c.mu.RUnlock()

	return found, nil
}

// Set stores a record, overwriting any previous value.
func (c *MemoryCache) Set(_ context.Context, key Key, record model.CommuteRecord) error {
	c.mu.Lock()
	c.entries[key] = record
	c.mu.Unlock()
	return nil
}

// Purge drops expired records and returns how many were removed.
func (c *MemoryCache) Purge() int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for k, r := range c.entries {
		if c.expired(r, now) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	return removed
}

// Len returns the number of stored records, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
