package forecast

import (
	"math"

	"EconCast/internal/domain/models"
	domsvc "EconCast/internal/domain/service"
)

// GrowthRate compounds the last value forward at the series' CAGR.
type GrowthRate struct{}

func NewGrowthRate() *GrowthRate { return &GrowthRate{} }

func (GrowthRate) Method() models.Method { return models.MethodGrowth }

// Forecast requires every value to be strictly positive: a zero or negative
// anywhere makes period ratios meaningless.
func (GrowthRate) Forecast(series []float64, horizon int) (*models.MethodForecast, error) {
	if err := checkInput(series, horizon); err != nil {
		return nil, err
	}
	for _, v := range series {
		if v <= 0 {
			return nil, models.NewComputationError("non-positive values preclude growth-rate forecasting")
		}
	}

	n := len(series)
	first, last := series[0], series[n-1]
	cagr := math.Pow(last/first, 1/float64(n-1)) - 1

	out := make([]float64, horizon)
	for k := range out {
		out[k] = last * math.Pow(1+cagr, float64(k+1))
	}

	ratios := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		ratios = append(ratios, series[i]/series[i-1]-1)
	}

	return &models.MethodForecast{
		Method:    models.MethodGrowth,
		Forecasts: out,
		Diagnostics: models.Diagnostics{Growth: &models.GrowthDiagnostics{
			CAGR:            cagr,
			CAGRPercent:     cagr * 100,
			AvgPeriodGrowth: mean(ratios) * 100,
			BeginningValue:  first,
			EndingValue:     last,
		}},
	}, nil
}

var _ domsvc.Forecaster = (*GrowthRate)(nil)
