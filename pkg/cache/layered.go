package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache implements two-level cache (L1: Memory, L2: Redis).
type LayeredCache struct {
	memCache   *MemoryBytes
	redisCache BytesCache
}

// NewLayeredCache creates a layered cache with memory and Redis.
func NewLayeredCache(redisCache BytesCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 256,
		MemoryTTL:     30 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		memCache:   NewMemoryBytes(WithMemoryMaxSize(cfg.MemoryMaxSize), WithMemoryTTL(cfg.MemoryTTL)),
		redisCache: redisCache,
	}
}

func (lc *LayeredCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// Write-through: Redis first, then memory
	if err := lc.redisCache.SetBytes(ctx, key, value, ttl); err != nil {
		return err
	}
	return lc.memCache.SetBytes(ctx, key, value, ttl)
}

func (lc *LayeredCache) GetBytes(ctx context.Context, key string) ([]byte, error) {
	// L1: Try memory first
	if v, err := lc.memCache.GetBytes(ctx, key); err == nil {
		return v, nil
	}

	// L2: Try Redis
	v, err := lc.redisCache.GetBytes(ctx, key)
	if err != nil {
		return nil, err
	}

	// Store in memory for next time
	_ = lc.memCache.SetBytes(ctx, key, v, 0)
	return v, nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	return lc.redisCache.Delete(ctx, keys...)
}

// Close closes the L2 layer when it supports closing.
func (lc *LayeredCache) Close() error {
	lc.memCache.Clear()
	if c, ok := lc.redisCache.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// IsMiss reports whether err is a cache miss from any layer.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

var _ BytesCache = (*LayeredCache)(nil)
