package forecast

import (
	"math"

	"EconCast/internal/domain/models"
	"EconCast/internal/services/features"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// populationStd is the ddof=0 standard deviation.
func populationStd(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func flat(v float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = v
	}
	return out
}

// checkInput is the shared precondition of every forecaster.
func checkInput(series []float64, horizon int) error {
	if horizon < 1 {
		return models.NewParameterError("horizon must be at least 1, got %d", horizon)
	}
	if len(series) < features.MinSeriesLength {
		return models.NewDataError("insufficient data: need at least %d values, got %d",
			features.MinSeriesLength, len(series))
	}
	return nil
}
