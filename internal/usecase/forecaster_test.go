package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
	domsvc "EconCast/internal/domain/service"
	"EconCast/internal/repository"
	icache "EconCast/internal/service/cache"
	"EconCast/internal/services/forecast"
	"EconCast/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEngine struct {
	mu    sync.Mutex
	inner domsvc.Engine
	calls int
}

func (e *countingEngine) Forecast(series []float64, horizon int, m models.Method) (*models.ForecastResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.inner.Forecast(series, horizon, m)
}

func (e *countingEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type captureEvents struct {
	mu     sync.Mutex
	events []models.ForecastEvent
}

func (c *captureEvents) PublishForecastEvent(_ context.Context, ev models.ForecastEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureEvents) Close() error { return nil }

func (c *captureEvents) last() models.ForecastEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func macroTable(gdp ...float64) *models.Table {
	t := &models.Table{Name: "macro", Columns: []string{"Year", "GDP Growth", "CPI"}}
	for i, v := range gdp {
		t.Rows = append(t.Rows, models.Row{"Year": 2015 + i, "GDP Growth": v, "CPI": float64(100 + i)})
	}
	return t
}

func tradeTable() *models.Table {
	t := &models.Table{Name: "trade", Columns: []string{"Year", "Flow", "Value"}}
	exports := []float64{100, 110, 120, 130}
	imports := []float64{80, 85, 90, 95}
	for i := range exports {
		t.Rows = append(t.Rows,
			models.Row{"Year": 2020 + i, "Flow": "Export", "Value": exports[i]},
			models.Row{"Year": 2020 + i, "Flow": "Import", "Value": imports[i]},
		)
	}
	return t
}

type fixture struct {
	svc    *ForecastService
	ds     *repository.StaticDataset
	engine *countingEngine
	clock  *clock
	events *captureEvents
	cache  *icache.ForecastCache
}

func newFixture(t *models.Table) *fixture {
	f := &fixture{
		ds:     repository.NewStaticDataset(t),
		engine: &countingEngine{inner: forecast.NewEngine()},
		clock:  &clock{t: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		events: &captureEvents{},
	}
	f.cache = icache.NewForecastCache(cache.WithMemoryClock(f.clock.Now))
	f.svc = NewForecastService(f.ds, f.engine, f.cache, WithEventPublisher(f.events))
	return f
}

func TestForecastIndicator_Idempotent(t *testing.T) {
	f := newFixture(macroTable(1.2, 1.8, 2.1, 2.6, 2.4, 3.0))
	ctx := context.Background()

	first, err := f.svc.ForecastIndicator(ctx, "gdp", 6, "")
	require.NoError(t, err)
	assert.Equal(t, "gdp", first.Indicator)
	assert.Equal(t, models.MethodEnsemble, first.Method)
	assert.False(t, f.events.last().CacheHit)

	second, err := f.svc.ForecastIndicator(ctx, "gdp", 6, "ensemble")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.engine.Calls())
	assert.True(t, f.events.last().CacheHit)
	assert.True(t, f.events.last().Success)

	// callers own their copy
	second.Forecasts[0] = -1
	third, err := f.svc.ForecastIndicator(ctx, "gdp", 6, "ensemble")
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestForecastIndicator_TTLExpiry(t *testing.T) {
	f := newFixture(macroTable(1, 2, 3, 4))
	ctx := context.Background()

	_, err := f.svc.ForecastIndicator(ctx, "GDP", 2, "linear")
	require.NoError(t, err)
	f.clock.Advance(icache.DefaultForecastTTL - time.Second)
	_, err = f.svc.ForecastIndicator(ctx, "GDP", 2, "linear")
	require.NoError(t, err)
	assert.Equal(t, 1, f.engine.Calls())

	f.clock.Advance(time.Second)
	_, err = f.svc.ForecastIndicator(ctx, "GDP", 2, "linear")
	require.NoError(t, err)
	assert.Equal(t, 2, f.engine.Calls())
}

func TestForecastIndicator_FingerprintInvalidation(t *testing.T) {
	f := newFixture(macroTable(10, 20, 30, 40, 50))
	ctx := context.Background()

	before, err := f.svc.ForecastIndicator(ctx, "GDP", 1, "trend")
	require.NoError(t, err)
	assert.Equal(t, []float64{60}, before.Forecasts)

	f.ds.Replace(macroTable(10, 20, 30, 40, 50, 60))
	after, err := f.svc.ForecastIndicator(ctx, "GDP", 1, "trend")
	require.NoError(t, err)
	assert.Equal(t, 2, f.engine.Calls())
	assert.Equal(t, []float64{70}, after.Forecasts)
}

func TestForecastIndicator_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(macroTable(1, 0, 3, 4))

	tests := []struct {
		name      string
		indicator string
		horizon   int
		method    string
		kind      models.ErrorKind
	}{
		{"zero horizon", "GDP", 0, "", models.KindParameter},
		{"negative horizon", "GDP", -3, "", models.KindParameter},
		{"unknown method", "GDP", 2, "arima", models.KindParameter},
		{"empty indicator", " ", 2, "", models.KindParameter},
		{"missing indicator", "unemployment", 2, "", models.KindData},
		{"growth over zero", "GDP", 2, "growth", models.KindComputation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ForecastIndicator(ctx, tt.indicator, tt.horizon, tt.method)
			require.Error(t, err)
			assert.Equal(t, tt.kind, models.KindOf(err))

			ev := f.events.last()
			assert.False(t, ev.Success)
			assert.Equal(t, tt.kind, ev.ErrorKind)
			assert.NotEmpty(t, ev.ID)
		})
	}
	assert.Equal(t, 0, f.cache.Stats().TotalEntries)
}

func TestForecastIndicator_InsufficientData(t *testing.T) {
	f := newFixture(macroTable(1))
	_, err := f.svc.ForecastIndicator(context.Background(), "GDP", 2, "")
	assert.True(t, models.IsKind(err, models.KindData))
}

func TestForecastIndicator_DatasetUnavailable(t *testing.T) {
	f := newFixture(nil)
	_, err := f.svc.ForecastIndicator(context.Background(), "GDP", 2, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domrepo.ErrDatasetUnavailable))
	assert.Equal(t, models.ErrorKind(""), models.KindOf(err))
}

func TestForecastTradeBalance_FlowColumn(t *testing.T) {
	f := newFixture(tradeTable())

	res, err := f.svc.ForecastTradeBalanceWithMethod(context.Background(), "Value", "Value", 2, "linear")
	require.NoError(t, err)

	assert.Equal(t, []float64{140, 150}, res.ExportForecast)
	assert.Equal(t, []float64{100, 105}, res.ImportForecast)
	assert.Equal(t, []float64{40, 45}, res.TradeBalanceForecast)
	assert.Equal(t, 35.0, res.CurrentBalance)
	assert.Equal(t, 42.5, res.AverageBalance)
	assert.Equal(t, models.PositionSurplus, res.Position)
	assert.Contains(t, res.Interpretation, "Trade surplus expected")
	assert.Equal(t, 2, res.Horizon)
}

func TestForecastTradeBalance_EnsembleIsExactDifference(t *testing.T) {
	f := newFixture(tradeTable())

	res, err := f.svc.ForecastTradeBalance(context.Background(), "Value", "Value", 4)
	require.NoError(t, err)
	require.Len(t, res.TradeBalanceForecast, 4)
	for i := range res.TradeBalanceForecast {
		assert.Equal(t, res.ExportForecast[i]-res.ImportForecast[i], res.TradeBalanceForecast[i])
	}

	// each side went through the cached ensemble path
	assert.Equal(t, 2, f.cache.Stats().TotalEntries)
	_, err = f.svc.ForecastTradeBalance(context.Background(), "Value", "Value", 4)
	require.NoError(t, err)
	assert.Equal(t, 2, f.engine.Calls())
	assert.True(t, f.events.last().CacheHit)
}

func TestForecastTradeBalance_SeparateColumns(t *testing.T) {
	tbl := &models.Table{Columns: []string{"Year", "Exports", "Imports"}}
	for i, v := range []float64{50, 55, 60} {
		tbl.Rows = append(tbl.Rows, models.Row{"Year": 2000 + i, "Exports": v, "Imports": v + 20})
	}
	f := newFixture(tbl)

	res, err := f.svc.ForecastTradeBalanceWithMethod(context.Background(), "export", "import", 3, "linear")
	require.NoError(t, err)
	assert.Equal(t, -20.0, res.CurrentBalance)
	assert.Equal(t, models.PositionDeficit, res.Position)
	assert.Contains(t, res.Interpretation, "Trade deficit expected")
}

func TestForecastTradeBalance_Balanced(t *testing.T) {
	tbl := &models.Table{Columns: []string{"Year", "Exports", "Imports"}}
	for i, v := range []float64{50, 55, 60} {
		tbl.Rows = append(tbl.Rows, models.Row{"Year": 2000 + i, "Exports": v, "Imports": v})
	}
	f := newFixture(tbl)

	res, err := f.svc.ForecastTradeBalance(context.Background(), "Exports", "Imports", 2)
	require.NoError(t, err)
	assert.Equal(t, models.PositionBalanced, res.Position)
	assert.Equal(t, 0.0, res.AverageBalance)
}

func TestForecastTradeBalance_EitherSideFails(t *testing.T) {
	f := newFixture(tradeTable())
	ctx := context.Background()

	_, err := f.svc.ForecastTradeBalance(ctx, "Value", "Tariff", 2)
	assert.True(t, models.IsKind(err, models.KindData))
	assert.Contains(t, err.Error(), "import side")

	_, err = f.svc.ForecastTradeBalance(ctx, "Value", "", 2)
	assert.True(t, models.IsKind(err, models.KindParameter))

	_, err = f.svc.ForecastTradeBalance(ctx, "Value", "Value", 0)
	assert.True(t, models.IsKind(err, models.KindParameter))
	assert.Equal(t, OperationTradeBalance, f.events.last().Operation)
}

func TestCacheStats(t *testing.T) {
	f := newFixture(macroTable(1, 2, 3))
	_, err := f.svc.ForecastIndicator(context.Background(), "GDP", 1, "")
	require.NoError(t, err)

	st := f.svc.CacheStats()
	assert.Equal(t, 1, st.TotalEntries)
	assert.Equal(t, 1, st.ActiveEntries)
	assert.Equal(t, icache.DefaultForecastEntries, st.MaxEntries)
	assert.Equal(t, 15.0, st.TTLMinutes)
}
