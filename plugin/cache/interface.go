// Package cache stores extraction results keyed by sign text so repeated reads
// of the same sign skip rule extraction.
//
// The in-memory LRU is always available; Redis is an optional second tier for
// sharing results between processes.
package cache

import (
	"context"
	"time"
)

// CacheService is the byte-oriented cache consumed by the sign service.
type CacheService interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value for ttl; a non-positive ttl uses the cache default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes key, or every key with the prefix when pattern ends in "*".
	Invalidate(ctx context.Context, pattern string) error
}
