package forecast

import (
	"math"

	"EconCast/internal/domain/models"
	domsvc "EconCast/internal/domain/service"
	"EconCast/internal/services/features"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Option configures Engine.
type Option func(*Config)

// Config holds the tunable constants of the engine.
type Config struct {
	Alpha     float64
	Window    int
	BandRatio float64
	Weights   map[models.Method]float64
}

// WithAlpha sets the exponential smoothing factor.
func WithAlpha(alpha float64) Option {
	return func(c *Config) {
		c.Alpha = alpha
	}
}

// WithWindow sets the moving average window.
func WithWindow(w int) Option {
	return func(c *Config) {
		c.Window = w
	}
}

// WithBandRatio sets the confidence band half-width ratio.
func WithBandRatio(r float64) Option {
	return func(c *Config) {
		c.BandRatio = r
	}
}

// WithWeights overrides ensemble weights; methods left out keep their default.
func WithWeights(w map[models.Method]float64) Option {
	return func(c *Config) {
		for m, v := range w {
			c.Weights[m] = v
		}
	}
}

// Engine selects a forecaster by method and turns its output into a complete
// ForecastResult.
type Engine struct {
	forecasters map[models.Method]domsvc.Forecaster
	ensemble    *Ensemble
	band        Band
	printer     *message.Printer
}

// NewEngine builds the closed set of forecasters plus the ensemble over them.
func NewEngine(opts ...Option) *Engine {
	cfg := &Config{
		Alpha:     DefaultAlpha,
		Window:    DefaultWindow,
		BandRatio: DefaultBandRatio,
		Weights: map[models.Method]float64{
			models.MethodLinear:        WeightLinear,
			models.MethodSmoothing:     WeightSmoothing,
			models.MethodGrowth:        WeightGrowth,
			models.MethodMovingAverage: WeightMovingAverage,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.BandRatio < 0 || cfg.BandRatio >= 1 {
		cfg.BandRatio = DefaultBandRatio
	}

	linear := NewLinearTrend()
	smoothing := NewExponentialSmoothing(cfg.Alpha)
	growth := NewGrowthRate()
	ma := NewMovingAverage(cfg.Window)
	band := Band{Ratio: cfg.BandRatio}

	return &Engine{
		forecasters: map[models.Method]domsvc.Forecaster{
			models.MethodLinear:        linear,
			models.MethodSmoothing:     smoothing,
			models.MethodGrowth:        growth,
			models.MethodMovingAverage: ma,
		},
		ensemble: NewEnsemble(band,
			Member{Forecaster: linear, Weight: cfg.Weights[models.MethodLinear]},
			Member{Forecaster: smoothing, Weight: cfg.Weights[models.MethodSmoothing]},
			Member{Forecaster: growth, Weight: cfg.Weights[models.MethodGrowth]},
			Member{Forecaster: ma, Weight: cfg.Weights[models.MethodMovingAverage]},
		),
		band:    band,
		printer: message.NewPrinter(language.English),
	}
}

// Forecaster returns the forecaster registered for method.
func (e *Engine) Forecaster(method models.Method) (domsvc.Forecaster, bool) {
	if method == models.MethodEnsemble {
		return e.ensemble, true
	}
	f, ok := e.forecasters[method]
	return f, ok
}

// Forecast runs method over series and fills in band, confidence and series
// metadata.
func (e *Engine) Forecast(series []float64, horizon int, method models.Method) (*models.ForecastResult, error) {
	f, ok := e.Forecaster(method)
	if !ok {
		return nil, models.NewParameterError("unknown method %q", string(method))
	}
	if err := checkInput(series, horizon); err != nil {
		return nil, err
	}

	var res *models.ForecastResult
	if ens, isEnsemble := f.(*Ensemble); isEnsemble {
		r, err := ens.Combine(series, horizon)
		if err != nil {
			return nil, err
		}
		res = r
	} else {
		out, err := f.Forecast(series, horizon)
		if err != nil {
			return nil, err
		}
		res = &models.ForecastResult{
			Method:      method,
			Forecasts:   out.Forecasts,
			MethodsUsed: []models.Method{method},
			Confidence:  methodConfidence(out),
			Diagnostics: out.Diagnostics,
		}
		res.LowerBound, res.UpperBound = e.band.Apply(res.Forecasts)
	}

	e.describe(res, series)
	return res, nil
}

func (e *Engine) describe(res *models.ForecastResult, series []float64) {
	last := series[len(series)-1]
	lo, hi := features.MinMax(series)
	res.HistoricalPeriods = len(series)
	res.LastActualValue = last
	res.DataRange = models.DataRange{Min: lo, Max: hi}

	end := res.Forecasts[len(res.Forecasts)-1]
	periods := len(res.Forecasts)
	if last == 0 {
		res.ForecastChangePercent = 0
		res.Interpretation = e.printer.Sprintf(
			"Forecast reaches %.2f after %d period(s); no percentage change from a zero baseline", end, periods)
		return
	}
	change := (end - last) / last * 100
	res.ForecastChangePercent = change
	verb := "increase"
	switch {
	case change < 0:
		verb = "decrease"
	case change == 0:
		verb = "change"
	}
	res.Interpretation = e.printer.Sprintf(
		"Forecast suggests %.1f%% %s over the next %d period(s), from %.2f to %.2f",
		math.Abs(change), verb, periods, last, end)
}

// methodConfidence labels a single-method forecast by its own fit metric.
// Methods without one are moderate.
func methodConfidence(out *models.MethodForecast) models.Confidence {
	d := out.Diagnostics
	switch {
	case d.Linear != nil:
		switch d.Linear.Quality {
		case "good":
			return models.ConfidenceHigh
		case "moderate":
			return models.ConfidenceModerate
		default:
			return models.ConfidenceLow
		}
	case d.Smoothing != nil:
		switch d.Smoothing.Accuracy {
		case "excellent":
			return models.ConfidenceHigh
		case "good":
			return models.ConfidenceModerate
		default:
			return models.ConfidenceLow
		}
	default:
		return models.ConfidenceModerate
	}
}

var _ domsvc.Engine = (*Engine)(nil)
