package health

import (
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter"
)

// ResultCache is a bounded TTL cache of the latest health result per
// account. The TTL equals the health-check interval, so the router never
// routes on a result older than one assessment cycle.
type ResultCache struct {
	cache otter.Cache[uuid.UUID, Result]
}

// NewResultCache creates a result cache holding up to capacity entries that
// expire after ttl.
func NewResultCache(capacity int, ttl time.Duration) (*ResultCache, error) {
	cache, err := otter.MustBuilder[uuid.UUID, Result](capacity).
		Cost(func(_ uuid.UUID, _ Result) uint32 { return 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &ResultCache{cache: cache}, nil
}

// Get returns the cached result for an account, if still fresh.
func (c *ResultCache) Get(id uuid.UUID) (Result, bool) {
	return c.cache.Get(id)
}

// Set stores a result.
func (c *ResultCache) Set(result Result) {
	c.cache.Set(result.AccountID, result)
}

// Delete evicts an account's cached result.
func (c *ResultCache) Delete(id uuid.UUID) {
	c.cache.Delete(id)
}

// Close releases the cache resources.
func (c *ResultCache) Close() {
	c.cache.Close()
}
