package metrics

import (
	"strconv"
	"time"

	"EconCast/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	reg prometheus.Registerer

	forecastsTotal *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	datasetRows    prometheus.Gauge
	datasetFetch   *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder registered on reg, or on the
// default registerer when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		forecastsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econcast_forecasts_total",
				Help: "Total number of forecasts served",
			},
			[]string{"method", "cache_hit"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econcast_errors_total",
				Help: "Total number of forecasting errors by kind",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "econcast_forecast_duration_seconds",
				Help:    "Duration of forecast requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		datasetRows: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "econcast_dataset_rows",
				Help: "Rows in the last dataset snapshot",
			},
		),
		datasetFetch: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "econcast_dataset_fetch_seconds",
				Help:    "Duration of dataset fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source", "ok"},
		),
	}
}

// RecordForecast records a served forecast.
func (r *Recorder) RecordForecast(method models.Method, cacheHit bool, d time.Duration) {
	r.forecastsTotal.WithLabelValues(string(method), strconv.FormatBool(cacheHit)).Inc()
	r.latency.WithLabelValues(string(method)).Observe(d.Seconds())
}

// RecordError records an error occurrence. Errors that carry no kind are
// counted as "internal".
func (r *Recorder) RecordError(kind models.ErrorKind) {
	k := string(kind)
	if k == "" {
		k = "internal"
	}
	r.errorsTotal.WithLabelValues(k).Inc()
}

// RecordDatasetFetch records one dataset read.
func (r *Recorder) RecordDatasetFetch(source string, rows int, d time.Duration, err error) {
	r.datasetFetch.WithLabelValues(source, strconv.FormatBool(err == nil)).Observe(d.Seconds())
	if err == nil {
		r.datasetRows.Set(float64(rows))
	}
}

// RegisterCacheGauges exposes forecast cache occupancy read from stats on
// every scrape.
func (r *Recorder) RegisterCacheGauges(stats func() models.CacheStats) {
	f := promauto.With(r.reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "econcast_cache_entries",
		Help: "Entries held by the forecast cache",
	}, func() float64 { return float64(stats().TotalEntries) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "econcast_cache_active_entries",
		Help: "Unexpired entries held by the forecast cache",
	}, func() float64 { return float64(stats().ActiveEntries) })
}
