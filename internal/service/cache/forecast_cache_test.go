package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"EconCast/internal/domain/models"
	"EconCast/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *models.ForecastResult {
	return &models.ForecastResult{
		Indicator:   "GDP",
		Method:      models.MethodLinear,
		Forecasts:   []float64{1, 2},
		LowerBound:  []float64{0.85, 1.7},
		UpperBound:  []float64{1.15, 2.3},
		MethodsUsed: []models.Method{models.MethodLinear},
		Diagnostics: models.Diagnostics{
			Linear:  &models.LinearDiagnostics{Slope: 1},
			Weights: map[models.Method]float64{models.MethodLinear: 1},
		},
	}
}

func TestKey(t *testing.T) {
	k := Key("GDP", 6, models.MethodEnsemble, "fp")
	assert.Len(t, k, 16)
	assert.Equal(t, k, Key("GDP", 6, models.MethodEnsemble, "fp"))
	assert.NotEqual(t, k, Key("GDP", 5, models.MethodEnsemble, "fp"))
	assert.NotEqual(t, k, Key("GDP", 6, models.MethodLinear, "fp"))
	assert.NotEqual(t, k, Key("GDP", 6, models.MethodEnsemble, "fp2"))
	assert.NotEqual(t, k, Key("CPI", 6, models.MethodEnsemble, "fp"))
}

func TestForecastCache_HitsReturnIndependentCopies(t *testing.T) {
	c := NewForecastCache()
	calls := 0
	compute := func() (*models.ForecastResult, error) {
		calls++
		return sampleResult(), nil
	}

	first, hit, err := c.GetOrCompute("k", compute)
	require.NoError(t, err)
	assert.False(t, hit)

	first.Forecasts[0] = 999
	first.Diagnostics.Linear.Slope = -1
	first.Diagnostics.Weights[models.MethodLinear] = 0

	second, hit, err := c.GetOrCompute("k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, sampleResult(), second)
}

func TestForecastCache_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewForecastCache(cache.WithMemoryClock(clock))

	var calls int
	compute := func() (*models.ForecastResult, error) {
		calls++
		return sampleResult(), nil
	}

	_, _, err := c.GetOrCompute("k", compute)
	require.NoError(t, err)

	now = now.Add(DefaultForecastTTL - time.Second)
	_, hit, _ := c.GetOrCompute("k", compute)
	assert.True(t, hit)

	now = now.Add(time.Second)
	st := c.Stats()
	assert.Equal(t, 1, st.ExpiredEntries)
	assert.Equal(t, 0, st.ActiveEntries)

	_, hit, _ = c.GetOrCompute("k", compute)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestForecastCache_Capacity(t *testing.T) {
	c := NewForecastCache()
	for i := 0; i < DefaultForecastEntries+25; i++ {
		_, _, err := c.GetOrCompute(fmt.Sprintf("k%d", i), func() (*models.ForecastResult, error) {
			return sampleResult(), nil
		})
		require.NoError(t, err)
	}

	st := c.Stats()
	assert.Equal(t, DefaultForecastEntries, st.TotalEntries)
	assert.Equal(t, DefaultForecastEntries, st.ActiveEntries)
	assert.Equal(t, DefaultForecastEntries, st.MaxEntries)
	assert.Equal(t, 15.0, st.TTLMinutes)
}

func TestForecastCache_ErrorNotStored(t *testing.T) {
	c := NewForecastCache()
	want := models.NewDataError("indicator not found: %q", "X")

	res, hit, err := c.GetOrCompute("k", func() (*models.ForecastResult, error) { return nil, want })
	assert.Nil(t, res)
	assert.False(t, hit)
	assert.True(t, errors.Is(err, want))
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestForecastCache_InvalidateAndClear(t *testing.T) {
	c := NewForecastCache()
	compute := func() (*models.ForecastResult, error) { return sampleResult(), nil }
	_, _, _ = c.GetOrCompute("a", compute)
	_, _, _ = c.GetOrCompute("b", compute)

	assert.True(t, c.Invalidate("a"))
	assert.Equal(t, 1, c.Stats().TotalEntries)
	c.Clear()
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestForecastCache_ConcurrentComputeOnce(t *testing.T) {
	c := NewForecastCache()
	var calls int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := c.GetOrCompute("same", func() (*models.ForecastResult, error) {
				atomic.AddInt32(&calls, 1)
				return sampleResult(), nil
			})
			assert.NoError(t, err)
			res.Forecasts[0] = -1
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	got, hit, err := c.GetOrCompute("same", nil)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1.0, got.Forecasts[0])
}
