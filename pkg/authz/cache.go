package authz

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// VisibilityCache stores computed visibility sets keyed by (user, kind).
//
// Entries hold the pre-restriction union from the Builder; scope restrictions
// are session state and are intersected after the cache, so a cached set is
// valid for every session of the same user. Invalidation is immediate
// removal: there is no stale-but-served state.
type VisibilityCache interface {
	// Get returns the cached set for the user and kind, or ErrCacheMiss.
	Get(ctx context.Context, userID int64, kind VisibilityKind) (SpaceSet, error)

	// Set stores the set for the user and kind.
	Set(ctx context.Context, userID int64, kind VisibilityKind, spaces SpaceSet) error

	// Invalidate removes both kinds of entry for each given user.
	Invalidate(ctx context.Context, userIDs ...int64) error

	// Flush removes every entry in the cache namespace.
	Flush(ctx context.Context) error
}

// visibilityCacheKey builds the cache key for a (user, kind) pair.
func visibilityCacheKey(userID int64, kind VisibilityKind) string {
	return fmt.Sprintf("%d/%s", userID, kind)
}

// CacheStats holds hit/miss counters for a visibility cache.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// MemoryCache is an in-process VisibilityCache backed by an expirable LRU.
// The TTL is a safety net against dropped invalidation events, not the
// primary coherence mechanism.
type MemoryCache struct {
	cache  *lru.LRU[string, SpaceSet]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a memory cache holding up to maxEntries visibility
// sets, each expiring after ttl.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries < 16 {
		maxEntries = 16
	}
	return &MemoryCache{
		cache: lru.NewLRU[string, SpaceSet](maxEntries, nil, ttl),
	}
}

// Get returns the cached set for the user and kind, or ErrCacheMiss.
func (c *MemoryCache) Get(ctx context.Context, userID int64, kind VisibilityKind) (SpaceSet, error) {
	set, ok := c.cache.Get(visibilityCacheKey(userID, kind))
	if !ok {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	c.hits.Add(1)
	// Copy on the way out so callers cannot mutate the cached snapshot.
	return set.Clone(), nil
}

// Set stores the set for the user and kind.
func (c *MemoryCache) Set(ctx context.Context, userID int64, kind VisibilityKind, spaces SpaceSet) error {
	c.cache.Add(visibilityCacheKey(userID, kind), spaces.Clone())
	return nil
}

// Invalidate removes both kinds of entry for each given user.
func (c *MemoryCache) Invalidate(ctx context.Context, userIDs ...int64) error {
	for _, userID := range userIDs {
		c.cache.Remove(visibilityCacheKey(userID, VisibilitySpaces))
		c.cache.Remove(visibilityCacheKey(userID, VisibilityPages))
	}
	return nil
}

// Flush removes every entry.
func (c *MemoryCache) Flush(ctx context.Context) error {
	c.cache.Purge()
	return nil
}

// Stats returns hit/miss counters and the current entry count.
func (c *MemoryCache) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.cache.Len(),
	}
}
