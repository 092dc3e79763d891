package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyAllTags caches the full tag listing; the tagging worker deletes it
// whenever a message introduces at least one new tag.
const KeyAllTags = "tags:all"

type CacheConfig struct {
	Addr       string
	DefaultTTL time.Duration
}

// Cache is a Redis-backed JSON cache for query responses.
type Cache struct {
	config CacheConfig
	client *redis.Client
}

func NewWithConfig(config CacheConfig) *Cache {
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 10 * time.Minute
	}

	return &Cache{
		config: config,
		client: redis.NewClient(&redis.Options{Addr: config.Addr}),
	}
}

// Get unmarshals the cached value into dest. The second return is false on a
// miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %v", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %v", key, err)
	}
	return true, nil
}

// Set marshals and stores a value. A zero ttl uses the configured default.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.config.DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %v", key, err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %v", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %v", key, err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
