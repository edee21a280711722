package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	defaultMemoryMaxSize = 1000
	defaultMemoryTTL     = 15 * time.Minute
)

type memoryItem[V any] struct {
	key      string
	value    V
	expireAt time.Time
}

// MemoryCache is a bounded in-process store with a per-entry TTL.
//
// Expiry is lazy: an expired entry is dropped when it is looked up or when the
// cache is full and needs room. When full, expired entries are swept first and
// then the oldest insertion is evicted. All operations take one mutex, which
// GetOrCompute also holds while compute runs; compute must not call back into
// the same cache.
type MemoryCache[V any] struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache[V any](opts ...MemoryOption) *MemoryCache[V] {
	cfg := &MemoryConfig{
		MaxSize: defaultMemoryMaxSize,
		TTL:     defaultMemoryTTL,
		Now:     time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSize < 1 {
		cfg.MaxSize = 1
	}

	return &MemoryCache[V]{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL,
		now:     cfg.Now,
	}
}

// Get returns the live value stored under key.
func (mc *MemoryCache[V]) Get(key string) (V, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lookup(key)
}

// Set stores value under key with the default TTL.
func (mc *MemoryCache[V]) Set(key string, value V) {
	mc.SetWithTTL(key, value, 0)
}

// SetWithTTL stores value under key; ttl <= 0 uses the default TTL.
func (mc *MemoryCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.insert(key, value, ttl)
}

// GetOrCompute returns the live value under key, or runs compute, stores its
// result and returns it. Errors are not cached. hit reports whether compute
// was skipped.
func (mc *MemoryCache[V]) GetOrCompute(key string, compute func() (V, error)) (value V, hit bool, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if v, ok := mc.lookup(key); ok {
		return v, true, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, false, err
	}
	mc.insert(key, v, 0)
	return v, false, nil
}

// Invalidate removes key and reports whether it was present.
func (mc *MemoryCache[V]) Invalidate(key string) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.items[key]
	if ok {
		mc.remove(el)
	}
	return ok
}

// Clear drops every entry.
func (mc *MemoryCache[V]) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.items = make(map[string]*list.Element)
	mc.order.Init()
}

// Len returns the number of stored entries, expired ones included.
func (mc *MemoryCache[V]) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.items)
}

// Stats counts stored entries without purging them.
func (mc *MemoryCache[V]) Stats() Stats {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	st := Stats{Total: len(mc.items), Max: mc.maxSize, TTL: mc.ttl}
	for el := mc.order.Front(); el != nil; el = el.Next() {
		if el.Value.(*memoryItem[V]).expired(now) {
			st.Expired++
		}
	}
	st.Active = st.Total - st.Expired
	return st
}

func (mc *MemoryCache[V]) lookup(key string) (V, bool) {
	var zero V
	el, ok := mc.items[key]
	if !ok {
		return zero, false
	}
	item := el.Value.(*memoryItem[V])
	if item.expired(mc.now()) {
		mc.remove(el)
		return zero, false
	}
	return item.value, true
}

func (mc *MemoryCache[V]) insert(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = mc.ttl
	}
	if el, ok := mc.items[key]; ok {
		mc.remove(el)
	}
	if len(mc.items) >= mc.maxSize {
		mc.evict()
	}
	item := &memoryItem[V]{key: key, value: value, expireAt: mc.now().Add(ttl)}
	mc.items[key] = mc.order.PushBack(item)
}

// evict sweeps expired entries, then drops the oldest insertions until there
// is room for one more.
func (mc *MemoryCache[V]) evict() {
	now := mc.now()
	for el := mc.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*memoryItem[V]).expired(now) {
			mc.remove(el)
		}
		el = next
	}
	for len(mc.items) >= mc.maxSize {
		mc.remove(mc.order.Front())
	}
}

func (mc *MemoryCache[V]) remove(el *list.Element) {
	item := mc.order.Remove(el).(*memoryItem[V])
	delete(mc.items, item.key)
}

func (m *memoryItem[V]) expired(now time.Time) bool {
	return !now.Before(m.expireAt)
}

// MemoryBytes adapts a MemoryCache to BytesCache.
type MemoryBytes struct {
	*MemoryCache[[]byte]
}

// NewMemoryBytes creates a byte-slice memory cache.
func NewMemoryBytes(opts ...MemoryOption) *MemoryBytes {
	return &MemoryBytes{MemoryCache: NewMemoryCache[[]byte](opts...)}
}

func (m *MemoryBytes) GetBytes(_ context.Context, key string) ([]byte, error) {
	v, ok := m.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *MemoryBytes) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.SetWithTTL(key, value, ttl)
	return nil
}

func (m *MemoryBytes) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.Invalidate(key)
	}
	return nil
}

var _ BytesCache = (*MemoryBytes)(nil)
