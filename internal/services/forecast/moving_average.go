package forecast

import (
	"EconCast/internal/domain/models"
	domsvc "EconCast/internal/domain/service"
)

const DefaultWindow = 3

// MovingAverage projects the mean of the last window observations flat.
type MovingAverage struct {
	window int
}

func NewMovingAverage(window int) *MovingAverage {
	if window < 1 {
		window = DefaultWindow
	}
	return &MovingAverage{window: window}
}

func (m *MovingAverage) Method() models.Method { return models.MethodMovingAverage }

func (m *MovingAverage) Forecast(series []float64, horizon int) (*models.MethodForecast, error) {
	if err := checkInput(series, horizon); err != nil {
		return nil, err
	}
	w := m.window
	if w > len(series) {
		w = len(series)
	}
	avg := mean(series[len(series)-w:])

	return &models.MethodForecast{
		Method:    models.MethodMovingAverage,
		Forecasts: flat(avg, horizon),
		Diagnostics: models.Diagnostics{MovingAverage: &models.MovingAverageDiagnostics{
			Window: w,
			Mean:   avg,
		}},
	}, nil
}

var _ domsvc.Forecaster = (*MovingAverage)(nil)
