// Package cache defines a small string key/value cache port and its
// adapters: an in-process TTL map and Redis.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is safe for concurrent use. Values are strings so callers own
// serialization.
type Cache interface {
	// Get returns ErrMiss when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value for ttl; a non-positive ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Del removes keys and reports how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals a cache miss, as opposed to a backend failure.
var ErrMiss = errors.New("cache: miss")
