package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const OrderCachePrefix = "order:detail:"

// OrderKey builds the read-cache key for a single order.
func OrderKey(orderID string) string {
	return OrderCachePrefix + orderID
}

// Cache is a thin Redis wrapper for order read responses. Readers populate it;
// the webhook processor invalidates it after a committed state change. A nil
// *Cache is a no-op so the service runs without Redis configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewClient initializes a Redis client from a URL and verifies connectivity.
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get unmarshals the cached value for key into dest, reporting whether it hit.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		c.logger.Warn("Failed to unmarshal cached value", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores value under key with the configured TTL, best-effort.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to marshal value for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache value", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops the cached entry for key. Failures are logged, never
// propagated: the state change this follows has already committed.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("Cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
