package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// BytesCache stores raw payloads with a per-entry TTL. A ttl <= 0 means the
// backend default.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Stats is a point-in-time view of a bounded cache.
type Stats struct {
	Total   int
	Expired int
	Active  int
	Max     int
	TTL     time.Duration
}

// GetJSON reads key from c and decodes it into T.
func GetJSON[T any](ctx context.Context, c BytesCache, key string) (T, error) {
	var obj T
	raw, err := c.GetBytes(ctx, key)
	if err != nil {
		return obj, err
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return obj, fmt.Errorf("decode %s: %w", key, err)
	}
	return obj, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, c BytesCache, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.SetBytes(ctx, key, raw, ttl)
}
