// Package cache provides byte-oriented cache backends.
//
// # Backends
//
//   - [FileCache]: one JSON file per key under a directory, written atomically
//   - [RedisCache]: a shared Redis instance for multi-instance deployments
//   - [NullCache]: never stores anything, for tests and --no-cache
//
// [NewScoped] prefixes every key of an existing backend so several
// consumers can share one Redis database without colliding.
//
// The taxonomy store uses a Cache as its disk/shared snapshot tier; the HTTP
// integrations do not cache responses.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values by key.
//
// Get reports a miss with ok=false and a nil error. Expired entries are
// misses. A ttl of zero means the entry never expires.
//
// Implementations are safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
