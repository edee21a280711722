package forecast

import (
	"math"

	"EconCast/internal/domain/models"
	domsvc "EconCast/internal/domain/service"
)

const DefaultAlpha = 0.3

// ExponentialSmoothing predicts the recent level: the final smoothed value is
// held flat over the horizon, no trend is extrapolated.
type ExponentialSmoothing struct {
	alpha float64
}

// NewExponentialSmoothing builds a smoother; alpha outside (0, 1] falls back to DefaultAlpha.
func NewExponentialSmoothing(alpha float64) *ExponentialSmoothing {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &ExponentialSmoothing{alpha: alpha}
}

func (s *ExponentialSmoothing) Method() models.Method { return models.MethodSmoothing }

func (s *ExponentialSmoothing) Forecast(series []float64, horizon int) (*models.MethodForecast, error) {
	if err := checkInput(series, horizon); err != nil {
		return nil, err
	}
	a := s.alpha
	smoothed := make([]float64, len(series))
	smoothed[0] = series[0]
	for t := 1; t < len(series); t++ {
		smoothed[t] = a*series[t] + (1-a)*smoothed[t-1]
	}
	level := smoothed[len(smoothed)-1]

	// S_0 equals the first value, so the fit is scored from t=1.
	errs := make([]float64, 0, len(series)-1)
	for t := 1; t < len(series); t++ {
		if series[t] == 0 {
			continue
		}
		errs = append(errs, math.Abs(series[t]-smoothed[t])/math.Abs(series[t])*100)
	}
	mape := mean(errs)

	return &models.MethodForecast{
		Method:    models.MethodSmoothing,
		Forecasts: flat(level, horizon),
		Diagnostics: models.Diagnostics{Smoothing: &models.SmoothingDiagnostics{
			Alpha:        a,
			LastSmoothed: level,
			MAPE:         mape,
			Accuracy:     accuracy(mape),
		}},
	}, nil
}

func accuracy(mape float64) string {
	switch {
	case mape < 10:
		return "excellent"
	case mape < 20:
		return "good"
	default:
		return "moderate"
	}
}

var _ domsvc.Forecaster = (*ExponentialSmoothing)(nil)
