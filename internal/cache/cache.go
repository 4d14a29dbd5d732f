package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/salestream-lab/salestream/internal/core/aggregation"
	"github.com/salestream-lab/salestream/internal/telemetry"
)

// DefaultTTL is the safety-net expiry for entries whose invalidation was
// missed. Explicit invalidation after every apply is the primary consistency
// mechanism; TTL only bounds the damage of a bug.
const DefaultTTL = 3600 * time.Second

// Loader fetches one bucket from the aggregate store on a cache miss.
type Loader func(ctx context.Context, key aggregation.BucketKey) (aggregation.Bucket, error)

type entry struct {
	bucket    aggregation.Bucket
	expiresAt time.Time
}

// Cache is a read-through TTL cache over single-bucket reads.
// Concurrent misses on the same key are collapsed into one store load via
// singleflight. Entries are invalidated explicitly by the ingestion engine
// after every successful apply, before the source message is acknowledged.
//
// gens carries a per-key generation bumped on every invalidation, resident
// entry or not. A load records the generation before hitting the store and
// stores its result only if the generation is unchanged, so a load that read
// the store before an apply committed can never overwrite that apply's
// invalidation with the pre-update bucket.
type Cache struct {
	loader Loader
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]entry
	gens    map[string]uint64

	group singleflight.Group
	clock func() time.Time
}

// New creates a cache over the given loader. ttl <= 0 falls back to DefaultTTL.
func New(loader Loader, ttl time.Duration) *Cache {
	if loader == nil {
		panic("cache: loader must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		loader:  loader,
		ttl:     ttl,
		entries: make(map[string]entry),
		gens:    make(map[string]uint64),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// GetBucket returns the bucket for key, loading it from the store on a miss
// and caching the result. Load errors are returned to the caller uncached —
// the next read retries the store.
func (c *Cache) GetBucket(ctx context.Context, key aggregation.BucketKey) (aggregation.Bucket, error) {
	cacheKey := key.CacheKey()
	now := c.clock()

	c.mu.RLock()
	e, ok := c.entries[cacheKey]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		telemetry.CacheHits.Inc()
		return e.bucket, nil
	}

	result, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		// Double-check after acquiring the flight: a concurrent load may
		// have repopulated the entry.
		c.mu.RLock()
		e, ok := c.entries[cacheKey]
		gen := c.gens[cacheKey]
		c.mu.RUnlock()
		if ok && c.clock().Before(e.expiresAt) {
			return e.bucket, nil
		}

		telemetry.CacheMisses.Inc()
		bucket, err := c.loader(ctx, key)
		if err != nil {
			return aggregation.Bucket{}, err
		}

		c.mu.Lock()
		// An invalidation raced the load: the loaded bucket may predate the
		// apply that invalidated. Serve it to this caller (its read began
		// first) but do not cache it, so the next read reloads.
		if c.gens[cacheKey] == gen {
			c.entries[cacheKey] = entry{bucket: bucket, expiresAt: c.clock().Add(c.ttl)}
		}
		c.mu.Unlock()

		return bucket, nil
	})
	if err != nil {
		return aggregation.Bucket{}, err
	}

	return result.(aggregation.Bucket), nil
}

// Invalidate drops the entry for key. The next GetBucket reloads from the
// store. Must be called for every touched key after a successful apply,
// before the source message is acknowledged.
func (c *Cache) Invalidate(key aggregation.BucketKey) {
	c.mu.Lock()
	ck := key.CacheKey()
	delete(c.entries, ck)
	c.gens[ck]++
	c.mu.Unlock()
}

// InvalidateAll drops the entries for every given key.
func (c *Cache) InvalidateAll(keys []aggregation.BucketKey) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	for _, key := range keys {
		ck := key.CacheKey()
		delete(c.entries, ck)
		c.gens[ck]++
	}
	c.mu.Unlock()
}

// Len reports the number of resident entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
