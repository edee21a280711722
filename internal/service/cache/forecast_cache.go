package cache

import (
	"time"

	"EconCast/internal/domain/models"
	"EconCast/pkg/cache"
)

const (
	DefaultForecastTTL     = 15 * time.Minute
	DefaultForecastEntries = 100
)

// ForecastCache memoises forecast results by request and data fingerprint.
//
// Stored results are never handed out: every call returns its own deep copy,
// so a hit is indistinguishable from a fresh computation. The underlying store
// holds its lock while compute runs, so concurrent callers for any key are
// serialised and each key is computed at most once per TTL window.
type ForecastCache struct {
	store *cache.MemoryCache[*models.ForecastResult]
}

// NewForecastCache builds a cache with a 15 minute TTL and 100 entries unless
// overridden.
func NewForecastCache(opts ...cache.MemoryOption) *ForecastCache {
	base := []cache.MemoryOption{
		cache.WithMemoryTTL(DefaultForecastTTL),
		cache.WithMemoryMaxSize(DefaultForecastEntries),
	}
	return &ForecastCache{store: cache.NewMemoryCache[*models.ForecastResult](append(base, opts...)...)}
}

// Key derives the cache key for one forecast request over a given series.
func Key(indicator string, horizon int, method models.Method, fingerprint string) string {
	return cache.HashKey(cache.GenerateKeyWithParams("forecast", indicator, horizon, method, fingerprint))
}

// GetOrCompute returns a copy of the cached result for key or computes,
// stores and returns a copy of a new one. Failed computations are not stored.
func (c *ForecastCache) GetOrCompute(key string, compute func() (*models.ForecastResult, error)) (*models.ForecastResult, bool, error) {
	res, hit, err := c.store.GetOrCompute(key, compute)
	if err != nil {
		return nil, false, err
	}
	return res.Clone(), hit, nil
}

// Invalidate drops one entry.
func (c *ForecastCache) Invalidate(key string) bool {
	return c.store.Invalidate(key)
}

// Clear drops every entry.
func (c *ForecastCache) Clear() {
	c.store.Clear()
}

func (c *ForecastCache) Stats() models.CacheStats {
	st := c.store.Stats()
	return models.CacheStats{
		TotalEntries:   st.Total,
		ExpiredEntries: st.Expired,
		ActiveEntries:  st.Active,
		MaxEntries:     st.Max,
		TTLMinutes:     st.TTL.Minutes(),
	}
}
