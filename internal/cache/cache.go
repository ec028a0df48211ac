// Package cache memoizes query results for a bounded time window.
// Expiry is purely time-based; callers accept staleness up to the
// window length. Two independent caches exist upstream: a short one
// for per-query results and a longer one for metadata.
package cache

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"muniquery/pkg/contracts/domain"
)

// entry is one cached result with its expiry deadline.
type entry struct {
	result    *domain.ResultSet
	cachedAt  time.Time
	expiresAt time.Time
}

// Cache is a TTL result cache safe for concurrent sessions sharing a
// process. Reads see the current value or absence, never a torn entry.
// Duplicate concurrent misses for one key are collapsed into a single
// computation.
type Cache struct {
	entries   map[string]entry
	mu        sync.RWMutex
	ttl       time.Duration
	maxSize   int
	hitCount  int64
	missCount int64
	group     singleflight.Group

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a cache with the given expiry window and size bound.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// NormalizeKey collapses runs of whitespace to single spaces and trims
// the ends, so cosmetically different text for the same query shares
// one entry.
func NormalizeKey(queryText string) string {
	return strings.Join(strings.Fields(queryText), " ")
}

// Get retrieves an unexpired result and records a hit or miss.
func (c *Cache) Get(key string) (*domain.ResultSet, bool) {
	result, ok := c.lookup(NormalizeKey(key))
	if ok {
		c.hit()
	} else {
		c.miss()
	}
	return result, ok
}

// lookup retrieves an unexpired result without touching the counters.
// Expired entries are dropped lazily here; there is no background
// sweeper.
func (c *Cache) lookup(key string) (*domain.ResultSet, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.cachedAt.Equal(e.cachedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.result, true
}

// Set stores a result under the key for one expiry window.
func (c *Cache) Set(key string, result *domain.ResultSet) {
	key = NormalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize <= 0 {
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := c.now()
	c.entries[key] = entry{
		result:    result,
		cachedAt:  now,
		expiresAt: now.Add(c.ttl),
	}
}

// GetOrCompute returns the cached result or computes and stores a
// fresh one. Concurrent callers missing the same key share one
// computation; computations for different keys proceed independently.
// Errors are never cached. One call counts as exactly one hit or one
// miss, regardless of the re-check after joining the flight.
func (c *Cache) GetOrCompute(key string, compute func() (*domain.ResultSet, error)) (*domain.ResultSet, error) {
	key = NormalizeKey(key)

	if result, ok := c.lookup(key); ok {
		c.hit()
		return result, nil
	}
	c.miss()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.lookup(key); ok {
			return result, nil
		}
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(key, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.ResultSet), nil
}

// Stats returns hit/miss counters and the current entry count.
func (c *Cache) Stats() (hits, misses int64, entries int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hitCount, c.missCount, len(c.entries)
}

func (c *Cache) hit() {
	c.mu.Lock()
	c.hitCount++
	c.mu.Unlock()
}

func (c *Cache) miss() {
	c.mu.Lock()
	c.missCount++
	c.mu.Unlock()
}

// evictOldest drops the least recently stored entry. Callers hold the
// write lock.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, e := range c.entries {
		if oldestKey == "" || e.cachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.cachedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
