// Package cache defines the TTL key-value cache contract used for
// read-through subscription lookups.
//
// The cache is an explicit, injected component: writers populate and
// invalidate entries, readers accept staleness up to the configured TTL.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL-bounded byte cache.
type Cache interface {
	// Get returns the cached value for key, or ok=false on a miss.
	// An expired entry is a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key with the given TTL. A zero TTL means the
	// entry does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
