// Package cache provides a key/value cache with per-entry expiry, used to
// avoid re-fetching slowly changing backend data (carts, categories).
package cache

import (
	"context"
	"time"
)

// Cache stores JSON-serializable values with a time-to-live.
//
// Get decodes the cached value into dst and reports whether the key was
// present and unexpired. A miss is not an error.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key prefixes.
const (
	CartKeyPrefix     = "cart"
	CategoryKeyPrefix = "categories"
)

// Key joins a prefix and an id into a cache key.
func Key(prefix, id string) string {
	return prefix + ":" + id
}
