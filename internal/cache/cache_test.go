// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("0.5"), time.Minute)
	c.Set(ctx, "forever", []byte("1"), 0)

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "0.5", string(got))

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "entry should expire")
	_, ok = c.Get(ctx, "forever")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	v := []byte("abc")
	c.Set(ctx, "k", v, 0)
	v[0] = 'x'
	got, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedisCache(ctx, types.CacheConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("0.25"), time.Hour)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "0.25", string(got))

	stored, err := mr.Get(KeyPrefix + "k")
	require.NoError(t, err)
	assert.Equal(t, "0.25", stored)

	mr.FastForward(2 * time.Hour)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCacheServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	c, err := NewRedisCache(ctx, types.CacheConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	mr.Close()
	c.Set(ctx, "k", []byte("1"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, types.CacheConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	mr := miniredis.RunT(t)
	c, err = New(ctx, types.CacheConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, c)

	_, err = New(ctx, types.CacheConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
