package preview

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docsmith/docsmith/internal/doc"
)

// Cache stores transiently-materialized preview documents under opaque keys.
// Entries are written once, never updated, and expire on their own.
type Cache interface {
	Set(ctx context.Context, key string, d doc.Document, ttl time.Duration) error
	// Get returns nil, nil when the key is absent or expired.
	Get(ctx context.Context, key string) (doc.Document, error)
}

// RedisCache implements Cache as JSON under "preview:<key>" with a Redis TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed preview cache. Prefix may be empty.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "preview:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Set(ctx context.Context, key string, d doc.Document, ttl time.Duration) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.client.Set(ctx, c.key(key), b, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (doc.Document, error) {
	b, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var d doc.Document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return d, nil
}
