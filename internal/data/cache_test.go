package data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"))
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	assert.Equal(t, 1, c.Len())
	c.sweep()
	assert.Equal(t, 0, c.Len())
}

func TestNewCache(t *testing.T) {
	c, err := NewCache(CacheOptions{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewCache(CacheOptions{Backend: "Memory", TTL: time.Second})
	require.NoError(t, err)
	require.IsType(t, &MemoryCache{}, c)
	c.(*MemoryCache).Close()

	_, err = NewCache(CacheOptions{Backend: "memcached"})
	assert.Error(t, err)
}

func TestGenerateCacheKey(t *testing.T) {
	a := GenerateCacheKey("/coins/bitcoin/market_chart", "days=30")
	b := GenerateCacheKey("/coins/bitcoin/market_chart", "days=31")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, GenerateCacheKey("/coins/bitcoin/market_chart", "days=30"))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c, err := NewRedisCache(CacheOptions{RedisAddr: addr, TTL: time.Minute, KeyPrefix: "smabt-test:"})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := GenerateCacheKey(t.Name(), time.Now().String())
	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, []byte(`{"prices":[]}`))
	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, `{"prices":[]}`, string(got))
}
