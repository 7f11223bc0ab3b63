package names

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrResolverUnavailable indicates the caching resolver has no backend.
var ErrResolverUnavailable = errors.New("name resolver unavailable")

// CachingResolver wraps another Resolver with a bounded TTL cache. Misses
// are not cached so a freshly published name resolves immediately.
type CachingResolver struct {
	base  Resolver
	cache *expirable.LRU[string, []Record]
}

// NewCachingResolver caches up to size lookups for ttl each.
func NewCachingResolver(base Resolver, size int, ttl time.Duration) *CachingResolver {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingResolver{
		base:  base,
		cache: expirable.NewLRU[string, []Record](size, nil, ttl),
	}
}

// Lookup returns cached records when available, otherwise it delegates to
// the underlying resolver and stores the result.
func (c *CachingResolver) Lookup(ctx context.Context, zone, label, recordType string) ([]Record, error) {
	if c == nil || c.base == nil {
		return nil, ErrResolverUnavailable
	}

	key := recordKey(zone, label, recordType)
	if records, ok := c.cache.Get(key); ok {
		return cloneRecords(records), nil
	}

	records, err := c.base.Lookup(ctx, zone, label, recordType)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, cloneRecords(records))
	return records, nil
}

// Invalidate drops any cached answer for the name.
func (c *CachingResolver) Invalidate(zone, label, recordType string) {
	c.cache.Remove(recordKey(zone, label, recordType))
}

// Len reports the number of cached answers.
func (c *CachingResolver) Len() int {
	return c.cache.Len()
}

func cloneRecords(in []Record) []Record {
	out := make([]Record, len(in))
	copy(out, in)
	return out
}
