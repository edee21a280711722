package models

import (
	"sort"
	"strings"
	"time"
)

// Confidence is a qualitative label attached to a forecast.
type Confidence string

const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceModerate Confidence = "moderate"
	ConfidenceLow      Confidence = "low"
)

// ForecastRequest asks for a horizon-step forecast of one indicator.
type ForecastRequest struct {
	Indicator string
	Horizon   int
	Method    Method
}

// Validate rejects requests that must never reach computation.
func (r ForecastRequest) Validate() error {
	if strings.TrimSpace(r.Indicator) == "" {
		return NewParameterError("indicator is required")
	}
	if r.Horizon < 1 {
		return NewParameterError("horizon must be at least 1, got %d", r.Horizon)
	}
	if !IsValidMethod(r.Method) {
		return NewParameterError("unknown method %q", string(r.Method))
	}
	return nil
}

type LinearDiagnostics struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	Direction string  `json:"direction"` // "increasing", "decreasing", "flat"
	Quality   string  `json:"quality"`   // "good", "moderate", "poor"
}

type GrowthDiagnostics struct {
	CAGR            float64 `json:"cagr"`
	CAGRPercent     float64 `json:"cagr_percent"`
	AvgPeriodGrowth float64 `json:"avg_period_growth"` // percent
	BeginningValue  float64 `json:"beginning_value"`
	EndingValue     float64 `json:"ending_value"`
}

type SmoothingDiagnostics struct {
	Alpha        float64 `json:"alpha"`
	LastSmoothed float64 `json:"last_smoothed"`
	MAPE         float64 `json:"mape"`
	Accuracy     string  `json:"accuracy"` // "excellent", "good", "moderate"
}

type MovingAverageDiagnostics struct {
	Window int     `json:"window"`
	Mean   float64 `json:"mean"`
}

// Diagnostics holds the method-specific metrics of a forecast. Only the
// blocks of the methods that ran are set.
type Diagnostics struct {
	Linear        *LinearDiagnostics        `json:"linear,omitempty"`
	Growth        *GrowthDiagnostics        `json:"growth,omitempty"`
	Smoothing     *SmoothingDiagnostics     `json:"smoothing,omitempty"`
	MovingAverage *MovingAverageDiagnostics `json:"moving_average,omitempty"`
	Weights       map[Method]float64        `json:"weights,omitempty"`
	Dropped       map[Method]string         `json:"dropped,omitempty"`
}

// Merge copies the set blocks of other into d.
func (d *Diagnostics) Merge(other Diagnostics) {
	if other.Linear != nil {
		d.Linear = other.Linear
	}
	if other.Growth != nil {
		d.Growth = other.Growth
	}
	if other.Smoothing != nil {
		d.Smoothing = other.Smoothing
	}
	if other.MovingAverage != nil {
		d.MovingAverage = other.MovingAverage
	}
}

// Clone returns a deep copy.
func (d Diagnostics) Clone() Diagnostics {
	out := Diagnostics{}
	if d.Linear != nil {
		v := *d.Linear
		out.Linear = &v
	}
	if d.Growth != nil {
		v := *d.Growth
		out.Growth = &v
	}
	if d.Smoothing != nil {
		v := *d.Smoothing
		out.Smoothing = &v
	}
	if d.MovingAverage != nil {
		v := *d.MovingAverage
		out.MovingAverage = &v
	}
	if d.Weights != nil {
		out.Weights = make(map[Method]float64, len(d.Weights))
		for k, v := range d.Weights {
			out.Weights[k] = v
		}
	}
	if d.Dropped != nil {
		out.Dropped = make(map[Method]string, len(d.Dropped))
		for k, v := range d.Dropped {
			out.Dropped[k] = v
		}
	}
	return out
}

// MethodForecast is the raw output of a single forecasting method.
type MethodForecast struct {
	Method      Method
	Forecasts   []float64
	Diagnostics Diagnostics
}

// DataRange is the span of the historical values.
type DataRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ForecastResult is the engine's answer to a ForecastRequest.
type ForecastResult struct {
	Indicator             string      `json:"indicator"`
	Method                Method      `json:"method"`
	Forecasts             []float64   `json:"forecasts"`
	LowerBound            []float64   `json:"lower_bound"`
	UpperBound            []float64   `json:"upper_bound"`
	MethodsUsed           []Method    `json:"methods_used"`
	Confidence            Confidence  `json:"confidence"`
	Diagnostics           Diagnostics `json:"diagnostics"`
	HistoricalPeriods     int         `json:"historical_periods"`
	LastActualValue       float64     `json:"last_actual_value"`
	ForecastChangePercent float64     `json:"forecast_change_percent"`
	DataRange             DataRange   `json:"data_range"`
	Interpretation        string      `json:"interpretation"`
}

// Clone returns a deep copy so cached values can't be mutated by callers.
func (r *ForecastResult) Clone() *ForecastResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Forecasts = cloneFloats(r.Forecasts)
	out.LowerBound = cloneFloats(r.LowerBound)
	out.UpperBound = cloneFloats(r.UpperBound)
	if r.MethodsUsed != nil {
		out.MethodsUsed = append([]Method(nil), r.MethodsUsed...)
	}
	out.Diagnostics = r.Diagnostics.Clone()
	return &out
}

// SortMethods orders methods canonically in place.
func SortMethods(ms []Method) {
	sort.SliceStable(ms, func(i, j int) bool { return methodRank(ms[i]) < methodRank(ms[j]) })
}

// TradePosition classifies a projected trade balance.
type TradePosition string

const (
	PositionSurplus  TradePosition = "surplus"
	PositionDeficit  TradePosition = "deficit"
	PositionBalanced TradePosition = "balanced"
)

// TradeBalanceResult combines an export and an import forecast.
type TradeBalanceResult struct {
	ExportIndicator      string        `json:"export_indicator"`
	ImportIndicator      string        `json:"import_indicator"`
	Horizon              int           `json:"forecast_periods"`
	ExportForecast       []float64     `json:"export_forecast"`
	ImportForecast       []float64     `json:"import_forecast"`
	TradeBalanceForecast []float64     `json:"trade_balance_forecast"`
	CurrentBalance       float64       `json:"current_balance"`
	AverageBalance       float64       `json:"average_balance"`
	Position             TradePosition `json:"position"`
	Interpretation       string        `json:"interpretation"`
}

// CacheStats is the read-only view of a cache exported to monitoring.
type CacheStats struct {
	TotalEntries   int     `json:"total_entries"`
	ExpiredEntries int     `json:"expired_entries"`
	ActiveEntries  int     `json:"active_entries"`
	MaxEntries     int     `json:"max_entries"`
	TTLMinutes     float64 `json:"ttl_minutes"`
}

// ForecastEvent records one served forecast for usage analytics.
type ForecastEvent struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"` // "indicator", "trade_balance"
	Indicator  string    `json:"indicator"`
	Method     Method    `json:"method"`
	Horizon    int       `json:"horizon"`
	CacheHit   bool      `json:"cache_hit"`
	Success    bool      `json:"success"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

func cloneFloats(xs []float64) []float64 {
	if xs == nil {
		return nil
	}
	out := make([]float64, len(xs))
	copy(out, xs)
	return out
}
