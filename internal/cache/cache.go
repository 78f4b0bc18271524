// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores small byte values with a TTL, in memory or in Redis.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// Cache is a best-effort key/value store. Implementations never return
// errors; a failed lookup is a miss and a failed write is dropped.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// MemoryCache is a mutex-guarded map with per-entry expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry), now: time.Now}
}

// Get returns the value for key if present and not expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

// Set stores value under key. ttl <= 0 keeps the entry until the process exits.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// New returns a RedisCache when cfg.Addr is set, otherwise a MemoryCache.
func New(ctx context.Context, cfg types.CacheConfig) (Cache, error) {
	if cfg.Addr == "" {
		return NewMemoryCache(), nil
	}
	return NewRedisCache(ctx, cfg)
}
