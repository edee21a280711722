package forecast

import (
	"testing"

	"EconCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-6

func TestLinearTrend_PerfectLine(t *testing.T) {
	out, err := NewLinearTrend().Forecast([]float64{10, 20, 30, 40, 50}, 3)
	require.NoError(t, err)

	d := out.Diagnostics.Linear
	require.NotNil(t, d)
	assert.Equal(t, 10.0, d.Slope)
	// index starts at 0, so the fitted line passes through the first value
	assert.Equal(t, 10.0, d.Intercept)
	assert.Equal(t, 1.0, d.RSquared)
	assert.Equal(t, "increasing", d.Direction)
	assert.Equal(t, "good", d.Quality)
	assert.Equal(t, []float64{60, 70, 80}, out.Forecasts)
}

func TestLinearTrend_Direction(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		want   string
	}{
		{"decreasing", []float64{9, 7, 5, 3}, "decreasing"},
		{"flat", []float64{4, 4, 4}, "flat"},
		{"increasing", []float64{1, 2}, "increasing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewLinearTrend().Forecast(tt.series, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Diagnostics.Linear.Direction)
		})
	}
}

func TestLinearTrend_ConstantSeriesHasPerfectFit(t *testing.T) {
	out, err := NewLinearTrend().Forecast([]float64{7, 7, 7, 7}, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Diagnostics.Linear.RSquared)
	assert.Equal(t, []float64{7, 7}, out.Forecasts)
}

func TestGrowthRate_ExactCompounding(t *testing.T) {
	out, err := NewGrowthRate().Forecast([]float64{100, 110, 121, 133.1}, 2)
	require.NoError(t, err)

	d := out.Diagnostics.Growth
	require.NotNil(t, d)
	assert.InDelta(t, 0.10, d.CAGR, tol)
	assert.InDelta(t, 10.0, d.CAGRPercent, 1e-4)
	assert.InDelta(t, 10.0, d.AvgPeriodGrowth, 1e-4)
	assert.Equal(t, 100.0, d.BeginningValue)
	assert.Equal(t, 133.1, d.EndingValue)
	require.Len(t, out.Forecasts, 2)
	assert.InDelta(t, 146.41, out.Forecasts[0], tol)
	assert.InDelta(t, 161.051, out.Forecasts[1], tol)
}

func TestGrowthRate_NonPositiveValues(t *testing.T) {
	for name, series := range map[string][]float64{
		"zero first":    {0, 10, 20},
		"negative last": {10, 20, -5},
		"zero middle":   {10, 0, 20},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewGrowthRate().Forecast(series, 2)
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.KindComputation))
			assert.Contains(t, err.Error(), "non-positive values preclude growth-rate forecasting")
		})
	}
}

func TestExponentialSmoothing(t *testing.T) {
	out, err := NewExponentialSmoothing(0.3).Forecast([]float64{10, 20}, 3)
	require.NoError(t, err)

	d := out.Diagnostics.Smoothing
	require.NotNil(t, d)
	assert.Equal(t, 0.3, d.Alpha)
	assert.InDelta(t, 13.0, d.LastSmoothed, 1e-12)
	assert.InDelta(t, 35.0, d.MAPE, 1e-9)
	assert.Equal(t, "moderate", d.Accuracy)
	require.Len(t, out.Forecasts, 3)
	for _, f := range out.Forecasts {
		assert.Equal(t, d.LastSmoothed, f)
	}
}

func TestExponentialSmoothing_SkipsZeroActuals(t *testing.T) {
	out, err := NewExponentialSmoothing(0.5).Forecast([]float64{10, 0, 10}, 1)
	require.NoError(t, err)
	// S = 10, 5, 7.5; only t=2 is scored: |10-7.5|/10 = 25%
	assert.InDelta(t, 25.0, out.Diagnostics.Smoothing.MAPE, 1e-9)
	assert.InDelta(t, 7.5, out.Forecasts[0], 1e-12)
}

func TestExponentialSmoothing_Accuracy(t *testing.T) {
	assert.Equal(t, "excellent", accuracy(9.99))
	assert.Equal(t, "good", accuracy(10))
	assert.Equal(t, "good", accuracy(19.9))
	assert.Equal(t, "moderate", accuracy(20))
}

func TestExponentialSmoothing_InvalidAlphaFallsBack(t *testing.T) {
	assert.Equal(t, DefaultAlpha, NewExponentialSmoothing(0).alpha)
	assert.Equal(t, DefaultAlpha, NewExponentialSmoothing(1.5).alpha)
	assert.Equal(t, 1.0, NewExponentialSmoothing(1).alpha)
}

func TestMovingAverage(t *testing.T) {
	out, err := NewMovingAverage(3).Forecast([]float64{1, 2, 3, 4, 5, 6}, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5, 5, 5}, out.Forecasts)
	assert.Equal(t, 3, out.Diagnostics.MovingAverage.Window)
	assert.Equal(t, 5.0, out.Diagnostics.MovingAverage.Mean)
}

func TestMovingAverage_WindowClampedToLength(t *testing.T) {
	out, err := NewMovingAverage(3).Forecast([]float64{2, 4}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Diagnostics.MovingAverage.Window)
	assert.Equal(t, []float64{3}, out.Forecasts)
}

func TestForecasters_SharedPreconditions(t *testing.T) {
	all := []interface {
		Forecast([]float64, int) (*models.MethodForecast, error)
	}{NewLinearTrend(), NewGrowthRate(), NewExponentialSmoothing(0.3), NewMovingAverage(3)}

	for _, f := range all {
		_, err := f.Forecast([]float64{1}, 1)
		assert.True(t, models.IsKind(err, models.KindData))

		_, err = f.Forecast([]float64{1, 2, 3}, 0)
		assert.True(t, models.IsKind(err, models.KindParameter))
	}
}
