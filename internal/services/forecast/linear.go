package forecast

import (
	"math"

	"EconCast/internal/domain/models"
	domsvc "EconCast/internal/domain/service"
)

// flatSlopeEpsilon is the band around zero inside which a slope reads as flat.
const flatSlopeEpsilon = 1e-9

// LinearTrend fits value = a + b*index by ordinary least squares and
// extrapolates the line.
type LinearTrend struct{}

func NewLinearTrend() *LinearTrend { return &LinearTrend{} }

func (LinearTrend) Method() models.Method { return models.MethodLinear }

func (LinearTrend) Forecast(series []float64, horizon int) (*models.MethodForecast, error) {
	if err := checkInput(series, horizon); err != nil {
		return nil, err
	}
	n := len(series)
	xMean := float64(n-1) / 2
	yMean := mean(series)

	var num, den float64
	for i, y := range series {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	slope := num / den
	intercept := yMean - slope*xMean

	var ssRes, ssTot float64
	for i, y := range series {
		pred := intercept + slope*float64(i)
		ssRes += (y - pred) * (y - pred)
		ssTot += (y - yMean) * (y - yMean)
	}
	r2 := 1.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}

	out := make([]float64, horizon)
	for k := range out {
		out[k] = intercept + slope*float64(n+k)
	}

	return &models.MethodForecast{
		Method:    models.MethodLinear,
		Forecasts: out,
		Diagnostics: models.Diagnostics{Linear: &models.LinearDiagnostics{
			Slope:     slope,
			Intercept: intercept,
			RSquared:  r2,
			Direction: direction(slope),
			Quality:   fitQuality(r2),
		}},
	}, nil
}

func direction(slope float64) string {
	switch {
	case math.Abs(slope) < flatSlopeEpsilon:
		return "flat"
	case slope > 0:
		return "increasing"
	default:
		return "decreasing"
	}
}

func fitQuality(r2 float64) string {
	switch {
	case r2 > 0.7:
		return "good"
	case r2 > 0.4:
		return "moderate"
	default:
		return "poor"
	}
}

var _ domsvc.Forecaster = (*LinearTrend)(nil)
