// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/microfinance-engine/internal/logging"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// KeyPrefix namespaces every key this package writes.
const KeyPrefix = "mfe:"

// opTimeout bounds each Redis command so a slow server degrades to a miss.
const opTimeout = 500 * time.Millisecond

// RedisCache is a Redis-backed Cache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to cfg.Addr and pings it.
func NewRedisCache(ctx context.Context, cfg types.CacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection to %s failed: %w", cfg.Addr, err)
	}

	logging.FromContext(ctx).Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to Redis cache")
	return &RedisCache{client: client}, nil
}

// Get returns the value for key. Errors are logged and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := c.client.Get(opCtx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("redis get failed")
		return nil, false
	}
	return val, true
}

// Set stores value under key with ttl. Errors are logged and dropped.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(opCtx, KeyPrefix+key, value, ttl).Err(); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
