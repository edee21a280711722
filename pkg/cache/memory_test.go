package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemoryCache_GetOrCompute(t *testing.T) {
	mc := NewMemoryCache[int]()
	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	v, hit, err := mc.GetOrCompute("k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v)

	v, hit, err = mc.GetOrCompute("k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestMemoryCache_ErrorsAreNotCached(t *testing.T) {
	mc := NewMemoryCache[int]()
	boom := errors.New("boom")

	_, _, err := mc.GetOrCompute("k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, mc.Len())

	v, hit, err := mc.GetOrCompute("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
}

func TestMemoryCache_TTL(t *testing.T) {
	clock := newFakeClock()
	mc := NewMemoryCache[string](WithMemoryTTL(time.Minute), WithMemoryClock(clock.Now))

	mc.Set("a", "x")
	clock.Advance(59 * time.Second)
	v, ok := mc.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	clock.Advance(time.Second)
	st := mc.Stats()
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.Expired)
	assert.Equal(t, 0, st.Active)

	_, ok = mc.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_PerEntryTTL(t *testing.T) {
	clock := newFakeClock()
	mc := NewMemoryCache[int](WithMemoryTTL(time.Hour), WithMemoryClock(clock.Now))

	mc.SetWithTTL("short", 1, time.Second)
	mc.Set("long", 2)
	clock.Advance(2 * time.Second)

	_, ok := mc.Get("short")
	assert.False(t, ok)
	_, ok = mc.Get("long")
	assert.True(t, ok)
}

func TestMemoryCache_EvictsOldestInsertion(t *testing.T) {
	mc := NewMemoryCache[int](WithMemoryMaxSize(3))
	for i := 0; i < 3; i++ {
		mc.Set(fmt.Sprintf("k%d", i), i)
	}
	// reads do not refresh position
	_, _ = mc.Get("k0")

	mc.Set("k3", 3)
	assert.Equal(t, 3, mc.Len())
	_, ok := mc.Get("k0")
	assert.False(t, ok)
	for _, k := range []string{"k1", "k2", "k3"} {
		_, ok := mc.Get(k)
		assert.True(t, ok, k)
	}
}

func TestMemoryCache_EvictionSweepsExpiredFirst(t *testing.T) {
	clock := newFakeClock()
	mc := NewMemoryCache[int](WithMemoryMaxSize(3), WithMemoryTTL(time.Minute), WithMemoryClock(clock.Now))

	mc.Set("old", 0)
	mc.SetWithTTL("stale", 1, time.Second)
	mc.Set("fresh", 2)
	clock.Advance(2 * time.Second)

	mc.Set("new", 3)
	assert.Equal(t, 3, mc.Len())
	_, ok := mc.Get("old")
	assert.True(t, ok, "oldest survives because an expired entry made room")
	_, ok = mc.Get("stale")
	assert.False(t, ok)
}

func TestMemoryCache_NeverExceedsCapacity(t *testing.T) {
	mc := NewMemoryCache[int](WithMemoryMaxSize(10))
	for i := 0; i < 100; i++ {
		mc.Set(fmt.Sprintf("k%d", i), i)
		assert.LessOrEqual(t, mc.Len(), 10)
	}
	assert.Equal(t, 10, mc.Stats().Max)
}

func TestMemoryCache_ResetMovesToBack(t *testing.T) {
	mc := NewMemoryCache[int](WithMemoryMaxSize(2))
	mc.Set("a", 1)
	mc.Set("b", 2)
	mc.Set("a", 10)
	mc.Set("c", 3)

	v, ok := mc.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
	_, ok = mc.Get("b")
	assert.False(t, ok)
}

func TestMemoryCache_InvalidateAndClear(t *testing.T) {
	mc := NewMemoryCache[int]()
	mc.Set("a", 1)
	mc.Set("b", 2)

	assert.True(t, mc.Invalidate("a"))
	assert.False(t, mc.Invalidate("a"))
	assert.Equal(t, 1, mc.Len())

	mc.Clear()
	assert.Equal(t, 0, mc.Len())
	assert.Equal(t, 0, mc.Stats().Total)
}

func TestMemoryCache_ConcurrentGetOrCompute(t *testing.T) {
	mc := NewMemoryCache[int](WithMemoryMaxSize(16))
	var (
		mu    sync.Mutex
		calls = map[string]int{}
		wg    sync.WaitGroup
	)

	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", g%4)
			_, _, err := mc.GetOrCompute(key, func() (int, error) {
				mu.Lock()
				calls[key]++
				mu.Unlock()
				return g, nil
			})
			assert.NoError(t, err)
		}(g)
	}
	wg.Wait()

	for k, n := range calls {
		assert.Equal(t, 1, n, k)
	}
	assert.Equal(t, 4, mc.Len())
}
