package forecast

import (
	"math"

	"EconCast/internal/domain/models"
	domsvc "EconCast/internal/domain/service"
)

// Default ensemble weights before renormalisation.
const (
	WeightLinear        = 0.30
	WeightSmoothing     = 0.30
	WeightGrowth        = 0.20
	WeightMovingAverage = 0.20
)

// Confidence thresholds on the coefficient of variation of the members'
// first-step forecasts.
const (
	highConfidenceCV     = 0.05
	moderateConfidenceCV = 0.20
)

// Member is a weighted ensemble participant.
type Member struct {
	Forecaster domsvc.Forecaster
	Weight     float64
}

// Ensemble merges several forecasters into one weighted forecast. A member
// that fails is dropped and the remaining weights are renormalised; only when
// every member fails does the ensemble fail.
type Ensemble struct {
	members []Member
	band    Band
}

func NewEnsemble(band Band, members ...Member) *Ensemble {
	return &Ensemble{members: members, band: band}
}

func (e *Ensemble) Method() models.Method { return models.MethodEnsemble }

// Forecast satisfies domsvc.Forecaster; the band and confidence are dropped.
func (e *Ensemble) Forecast(series []float64, horizon int) (*models.MethodForecast, error) {
	res, err := e.Combine(series, horizon)
	if err != nil {
		return nil, err
	}
	return &models.MethodForecast{Method: models.MethodEnsemble, Forecasts: res.Forecasts, Diagnostics: res.Diagnostics}, nil
}

// Combine runs every member and returns forecasts, band, methods used,
// confidence and diagnostics. Series metadata is left for the caller.
func (e *Ensemble) Combine(series []float64, horizon int) (*models.ForecastResult, error) {
	if err := checkInput(series, horizon); err != nil {
		return nil, err
	}

	type ok struct {
		out    *models.MethodForecast
		weight float64
	}
	var (
		ran     []ok
		dropped map[models.Method]string
		total   float64
	)
	for _, m := range e.members {
		out, err := m.Forecaster.Forecast(series, horizon)
		if err != nil {
			if dropped == nil {
				dropped = make(map[models.Method]string)
			}
			dropped[m.Forecaster.Method()] = err.Error()
			continue
		}
		ran = append(ran, ok{out: out, weight: m.Weight})
		total += m.Weight
	}
	if len(ran) == 0 || total <= 0 {
		return nil, models.NewComputationError("no forecasting method could be applied")
	}

	res := &models.ForecastResult{
		Method:    models.MethodEnsemble,
		Forecasts: make([]float64, horizon),
		Diagnostics: models.Diagnostics{
			Weights: make(map[models.Method]float64, len(ran)),
			Dropped: dropped,
		},
	}
	first := make([]float64, 0, len(ran))
	for _, r := range ran {
		w := r.weight / total
		for k := 0; k < horizon; k++ {
			res.Forecasts[k] += w * r.out.Forecasts[k]
		}
		res.MethodsUsed = append(res.MethodsUsed, r.out.Method)
		res.Diagnostics.Weights[r.out.Method] = w
		res.Diagnostics.Merge(r.out.Diagnostics)
		first = append(first, r.out.Forecasts[0])
	}
	models.SortMethods(res.MethodsUsed)
	res.LowerBound, res.UpperBound = e.band.Apply(res.Forecasts)
	res.Confidence = agreement(first)
	return res, nil
}

// agreement labels how closely the members agree on the first step.
func agreement(firstStep []float64) models.Confidence {
	m := mean(firstStep)
	if m == 0 {
		return models.ConfidenceLow
	}
	cv := populationStd(firstStep) / math.Abs(m)
	switch {
	case cv < highConfidenceCV:
		return models.ConfidenceHigh
	case cv < moderateConfidenceCV:
		return models.ConfidenceModerate
	default:
		return models.ConfidenceLow
	}
}

var _ domsvc.Forecaster = (*Ensemble)(nil)
