// Package teasers provides a TTL cache for crawled teaser lists. Crawling a
// listing page is expensive, so the monitor and API share recent results per
// source instead of re-crawling within the TTL window.
package teasers

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/curator/internal/domain"
)

// DefaultTTL is used when the configured TTL is zero
const DefaultTTL = 10 * time.Minute

type entry struct {
	items     []domain.Teaser
	expiresAt time.Time
}

// Cache holds teaser lists keyed by source ID with time-based expiry.
// Expired entries are dropped lazily on read.
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time // overridable for tests

	entries map[uuid.UUID]entry
}

// NewCache creates a teaser cache with the given TTL
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uuid.UUID]entry),
	}
}

// Set stores the teaser list for a source, resetting its expiry
func (c *Cache) Set(sourceID uuid.UUID, items []domain.Teaser) {
	copied := make([]domain.Teaser, len(items))
	copy(copied, items)

	c.mu.Lock()
	c.entries[sourceID] = entry{
		items:     copied,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Get returns the cached teaser list for a source while it is fresh
func (c *Cache) Get(sourceID uuid.UUID) ([]domain.Teaser, bool) {
	c.mu.RLock()
	e, ok := c.entries[sourceID]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it
		if cur, still := c.entries[sourceID]; still && c.now().After(cur.expiresAt) {
			delete(c.entries, sourceID)
		}
		c.mu.Unlock()
		return nil, false
	}

	items := make([]domain.Teaser, len(e.items))
	copy(items, e.items)
	return items, true
}

// Invalidate removes the cached entry for a source
func (c *Cache) Invalidate(sourceID uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, sourceID)
	c.mu.Unlock()
}

// Len returns the number of cached entries, including any not yet swept
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
