package cache

import (
	"context"
	"time"
)

// ScopedCache wraps a Cache with a key prefix for namespace isolation.
// This is useful when several deployments or environments share one
// Redis database.
//
// Example usage:
//
//	staging := cache.NewScoped(redisCache, "staging:")
//	prod := cache.NewScoped(redisCache, "prod:")
type ScopedCache struct {
	inner  Cache
	prefix string
}

// NewScoped creates a cache whose keys are all prefixed with prefix.
// A nil inner cache is replaced with a NullCache.
func NewScoped(inner Cache, prefix string) *ScopedCache {
	if inner == nil {
		inner = NewNullCache()
	}
	return &ScopedCache{
		inner:  inner,
		prefix: prefix,
	}
}

// Prefix returns the key prefix.
func (c *ScopedCache) Prefix() string { return c.prefix }

// Get retrieves a prefixed key from the inner cache.
func (c *ScopedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.inner.Get(ctx, c.prefix+key)
}

// Set stores a prefixed key in the inner cache.
func (c *ScopedCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.inner.Set(ctx, c.prefix+key, data, ttl)
}

// Delete removes a prefixed key from the inner cache.
func (c *ScopedCache) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, c.prefix+key)
}

// Close closes the inner cache.
func (c *ScopedCache) Close() error {
	return c.inner.Close()
}

var _ Cache = (*ScopedCache)(nil)
