package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"EconCast/internal/domain/models"
	"EconCast/internal/repository"
	icache "EconCast/internal/service/cache"
	"EconCast/internal/service/ratelimit"
	"EconCast/internal/services/forecast"
	"EconCast/internal/services/usage"
	"EconCast/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func testTable() *models.Table {
	return &models.Table{
		Name:    "macro",
		Columns: []string{"Year", "GDP", "Net", "Exports", "Imports"},
		Rows: []models.Row{
			{"Year": 2019, "GDP": 10.0, "Net": -5.0, "Exports": 100.0, "Imports": 80.0},
			{"Year": 2020, "GDP": 20.0, "Net": 5.0, "Exports": 110.0, "Imports": 85.0},
			{"Year": 2021, "GDP": 30.0, "Net": 10.0, "Exports": 120.0, "Imports": 90.0},
			{"Year": 2022, "GDP": 40.0, "Net": 12.0, "Exports": 130.0, "Imports": 95.0},
			{"Year": 2023, "GDP": 50.0, "Net": 14.0, "Exports": 140.0, "Imports": 100.0},
		},
	}
}

func newTestServer(t *testing.T, table *models.Table, rl *ratelimit.Limiter) (*echo.Echo, *usage.Tracker) {
	t.Helper()
	tracker := usage.NewTracker()
	svc := usecase.NewForecastService(
		repository.NewStaticDataset(table),
		forecast.NewEngine(),
		icache.NewForecastCache(),
		usecase.WithEventPublisher(usecase.NewLocalUsageSink(tracker)),
	)
	e := echo.New()
	NewForecastEchoHandler(nil, svc, tracker, rl).RegisterRoutes(e)
	return e, tracker
}

func get(t *testing.T, e *echo.Echo, target string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func firstErrorCode(t *testing.T, env envelope) string {
	t.Helper()
	var errs []struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &errs), string(env.Data))
	require.NotEmpty(t, errs)
	return errs[0].Code
}

func TestForecast_OK(t *testing.T) {
	e, _ := newTestServer(t, testTable(), nil)

	code, env := get(t, e, "/api/forecast?indicator=gdp&horizon=3&method=linear")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, http.StatusOK, env.Status)

	var res models.ForecastResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, models.MethodLinear, res.Method)
	assert.InDeltaSlice(t, []float64{60, 70, 80}, res.Forecasts, 1e-9)
	assert.Equal(t, 5, res.HistoricalPeriods)
}

func TestForecast_DefaultsToEnsemble(t *testing.T) {
	e, _ := newTestServer(t, testTable(), nil)

	code, env := get(t, e, "/api/forecast?indicator=gdp")
	require.Equal(t, http.StatusOK, code)
	var res models.ForecastResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, models.MethodEnsemble, res.Method)
	assert.Len(t, res.Forecasts, 6)
}

func TestForecast_ErrorMapping(t *testing.T) {
	e, _ := newTestServer(t, testTable(), nil)

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing indicator", "/api/forecast", http.StatusBadRequest, "ERR_REQUIRED"},
		{"non-integer horizon", "/api/forecast?indicator=gdp&horizon=abc", http.StatusBadRequest, "ERR_PARAMETER"},
		{"zero horizon", "/api/forecast?indicator=gdp&horizon=0", http.StatusBadRequest, "ERR_PARAMETER"},
		{"unknown method", "/api/forecast?indicator=gdp&method=arima", http.StatusBadRequest, "ERR_PARAMETER"},
		{"unknown indicator", "/api/forecast?indicator=unemployment", http.StatusNotFound, "ERR_DATA"},
		{"growth over non-positive", "/api/forecast?indicator=net&method=growth", http.StatusUnprocessableEntity, "ERR_COMPUTATION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := get(t, e, tt.target)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.status, env.Status)
			assert.Equal(t, tt.code, firstErrorCode(t, env))
		})
	}
}

func TestForecast_DatasetUnavailable(t *testing.T) {
	e, _ := newTestServer(t, nil, nil)

	code, env := get(t, e, "/api/forecast?indicator=gdp")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "ERR_UNAVAILABLE", firstErrorCode(t, env))
}

func TestTradeBalance_OK(t *testing.T) {
	e, _ := newTestServer(t, testTable(), nil)

	code, env := get(t, e, "/api/trade-balance?export=exports&import=imports&horizon=2&method=linear")
	require.Equal(t, http.StatusOK, code)

	var res models.TradeBalanceResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.InDeltaSlice(t, []float64{150, 160}, res.ExportForecast, 1e-9)
	assert.InDeltaSlice(t, []float64{105, 110}, res.ImportForecast, 1e-9)
	assert.InDeltaSlice(t, []float64{45, 50}, res.TradeBalanceForecast, 1e-9)
	assert.Equal(t, models.PositionSurplus, res.Position)
}

func TestTradeBalance_MissingSide(t *testing.T) {
	e, _ := newTestServer(t, testTable(), nil)

	code, env := get(t, e, "/api/trade-balance?export=exports&import=tariffs")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "ERR_DATA", firstErrorCode(t, env))
}

func TestCacheStatsAndUsage(t *testing.T) {
	e, _ := newTestServer(t, testTable(), nil)

	get(t, e, "/api/forecast?indicator=gdp&method=linear")
	get(t, e, "/api/forecast?indicator=gdp&method=linear")
	get(t, e, "/api/forecast?indicator=unemployment")

	code, env := get(t, e, "/api/cache/stats")
	require.Equal(t, http.StatusOK, code)
	var stats models.CacheStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 100, stats.MaxEntries)
	assert.Equal(t, 15.0, stats.TTLMinutes)

	code, env = get(t, e, "/api/usage?limit=5")
	require.Equal(t, http.StatusOK, code)
	var rep models.UsageReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, 3, rep.TotalRequests)
	assert.Equal(t, []string{"unemployment"}, rep.DataGaps)
	assert.InDelta(t, 33.3, rep.CacheHitRate, 0.01)
}

func TestRateLimitedGroup(t *testing.T) {
	e, _ := newTestServer(t, testTable(), ratelimit.New(0.001, 1))

	code, _ := get(t, e, "/api/cache/stats")
	assert.Equal(t, http.StatusOK, code)
	code, env := get(t, e, "/api/cache/stats")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, http.StatusTooManyRequests, env.Status)
}
