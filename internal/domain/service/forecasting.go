package service

import (
	"EconCast/internal/domain/models"
)

// Forecaster produces a horizon-step forecast from a historical series.
// Implementations are pure and safe for concurrent use.
type Forecaster interface {
	Method() models.Method
	Forecast(series []float64, horizon int) (*models.MethodForecast, error)
}

// Engine turns a series into a complete result for a requested method.
type Engine interface {
	Forecast(series []float64, horizon int, method models.Method) (*models.ForecastResult, error)
}
