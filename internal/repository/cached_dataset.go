package repository

import (
	"context"
	"time"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
	"EconCast/pkg/cache"
	applogger "EconCast/pkg/logger"
)

const (
	DefaultRawCacheTTL     = 30 * time.Minute
	DefaultRawCacheEntries = 256
)

// CachedDataset memoises dataset snapshots in a byte cache. While an entry is
// live, changes in the backend are not seen, and neither is the new
// fingerprint they would produce.
type CachedDataset struct {
	next domrepo.DatasetReader
	c    cache.BytesCache
	key  string
	ttl  time.Duration
	l    *applogger.Logger
}

func NewCachedDataset(next domrepo.DatasetReader, c cache.BytesCache, source string, ttl time.Duration) *CachedDataset {
	if ttl <= 0 {
		ttl = DefaultRawCacheTTL
	}
	return &CachedDataset{next: next, c: c, key: cache.GenerateKey("dataset", source), ttl: ttl}
}

// SetLogger injects a structured logger.
func (d *CachedDataset) SetLogger(l *applogger.Logger) { d.l = l }

func (d *CachedDataset) Table(ctx context.Context) (*models.Table, error) {
	t, err := cache.GetJSON[*models.Table](ctx, d.c, d.key)
	if err == nil && t != nil {
		if d.l != nil {
			d.l.Debug("dataset cache hit", applogger.String("key", d.key))
		}
		return t, nil
	}
	if err != nil && !cache.IsMiss(err) && d.l != nil {
		d.l.Warn("dataset cache read failed", applogger.String("key", d.key), applogger.Error(err))
	}

	t, err = d.next.Table(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, d.c, d.key, t, d.ttl); err != nil && d.l != nil {
		d.l.Warn("dataset cache write failed", applogger.String("key", d.key), applogger.Error(err))
	}
	return t, nil
}

// Invalidate drops the cached snapshot.
func (d *CachedDataset) Invalidate(ctx context.Context) error {
	return d.c.Delete(ctx, d.key)
}

var _ domrepo.DatasetReader = (*CachedDataset)(nil)
