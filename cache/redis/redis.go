// Package redis provides a Redis-backed cache implementation.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache implements cache.Cache on a Redis client.
type Cache struct {
	rdb goredis.UniversalClient
}

// New creates a Redis cache using the given client.
func New(rdb goredis.UniversalClient) *Cache {
	return &Cache{rdb: rdb}
}

// Get returns the cached value for key; Redis TTL expiry produces a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("courier/cache: get %q: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("courier/cache: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("courier/cache: delete %q: %w", key, err)
	}
	return nil
}
