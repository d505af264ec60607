package data

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Cache stores raw upstream responses by key. Misses and backend failures look the
// same to callers: they fall through to the network.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
}

// CacheOptions selects and tunes a cache backend.
type CacheOptions struct {
	Backend       string // "memory", "redis" or "none"
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// NewCache builds the backend named in opts. It returns a nil Cache for "none" or an
// empty backend.
func NewCache(opts CacheOptions) (Cache, error) {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	switch strings.ToLower(opts.Backend) {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryCache(opts.TTL), nil
	case "redis":
		return NewRedisCache(opts)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

type cacheEntry struct {
	val       []byte
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache with a background sweeper.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		store: make(map[string]cacheEntry),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	go c.cleanup(5 * time.Minute)
	return c
}

// Get returns a live entry.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.store[key]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.val, true
}

// Set stores val for the cache TTL.
func (c *MemoryCache) Set(_ context.Context, key string, val []byte) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = cacheEntry{val: val, expiresAt: c.now().Add(c.ttl)}
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the sweeper.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *MemoryCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.store {
		if now.After(e.expiresAt) {
			delete(c.store, k)
		}
	}
}

// RedisCache keeps responses in Redis so several API replicas share them.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects and pings the server.
func NewRedisCache(opts CacheOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.RedisAddr, err)
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "smabt:"
	}
	log.Info().Str("component", "cache").Str("addr", opts.RedisAddr).Dur("ttl", opts.TTL).Msg("redis cache connected")
	return &RedisCache{client: client, ttl: opts.TTL, prefix: prefix}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Str("component", "cache").Err(err).Msg("redis get failed")
		}
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte) {
	if err := c.client.Set(ctx, c.prefix+key, val, c.ttl).Err(); err != nil {
		log.Warn().Str("component", "cache").Err(err).Msg("redis set failed")
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GenerateCacheKey hashes the request identity into a fixed-size key.
func GenerateCacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}
