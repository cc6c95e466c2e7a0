// Package cache memoizes search results with a TTL. Concurrent requests
// for the same key share a single computation.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/deckforge/cardindex/internal/metrics"
	"github.com/deckforge/cardindex/internal/search"
)

// DefaultTTL is how long a cached result stays fresh.
const DefaultTTL = time.Hour

type entry struct {
	matches []search.Match
	expires time.Time
}

// Cache is a TTL result cache keyed by canonical query+options strings.
// Expired entries are dropped lazily on read and swept periodically by
// Sweep.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time
}

// New creates a cache. ttl <= 0 falls back to DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// keyPayload fixes the serialization order of the cache key, so two
// requests differing only in JSON field order share an entry.
type keyPayload struct {
	Query   string         `json:"query"`
	Options search.Options `json:"options"`
}

// Key builds the canonical cache key for a query and its options.
func Key(query string, opts search.Options) string {
	b, err := json.Marshal(keyPayload{Query: query, Options: opts})
	if err != nil {
		// Options contains only marshalable fields; this cannot happen.
		return query
	}
	return string(b)
}

// Get returns the cached matches for key, or computes them via fn.
// Concurrent callers with the same key wait on one computation instead
// of racing; a failed computation caches nothing.
func (c *Cache) Get(key string, fn func() ([]search.Match, error)) ([]search.Match, error) {
	if matches, ok := c.lookup(key); ok {
		metrics.SearchCacheTotal.WithLabelValues("hit").Inc()
		return matches, nil
	}
	metrics.SearchCacheTotal.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check: an earlier flight may have populated the entry
		// between our lookup and joining the group.
		if matches, ok := c.lookup(key); ok {
			return matches, nil
		}
		matches, err := fn()
		if err != nil {
			return nil, err
		}
		c.put(key, matches)
		return matches, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]search.Match), nil
}

func (c *Cache) lookup(key string) ([]search.Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.matches, true
}

func (c *Cache) put(key string, matches []search.Match) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{matches: matches, expires: c.now().Add(c.ttl)}
}

// Len returns the number of live entries, counting expired ones not yet
// swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// sweep drops expired entries.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, key)
		}
	}
}

// Sweep removes expired entries every interval until ctx is done.
// Intended to run as a goroutine from main.
func (c *Cache) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}
