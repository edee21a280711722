package metrics

import (
	"errors"
	"testing"
	"time"

	"EconCast/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordForecast(models.MethodLinear, false, 10*time.Millisecond)
	r.RecordForecast(models.MethodLinear, true, time.Millisecond)
	r.RecordForecast(models.MethodEnsemble, true, time.Millisecond)
	r.RecordError(models.KindData)
	r.RecordError("")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecastsTotal.WithLabelValues("linear", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecastsTotal.WithLabelValues("linear", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("internal")))
}

func TestRecorder_DatasetFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordDatasetFetch("csv", 42, time.Millisecond, nil)
	r.RecordDatasetFetch("csv", 0, time.Millisecond, errors.New("boom"))
	assert.Equal(t, 42.0, testutil.ToFloat64(r.datasetRows))
}

func TestRecorder_CacheGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	stats := models.CacheStats{TotalEntries: 5, ActiveEntries: 3}
	r.RegisterCacheGauges(func() models.CacheStats { return stats })

	mfs, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() == "econcast_cache_entries" || mf.GetName() == "econcast_cache_active_entries" {
			got[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 5.0, got["econcast_cache_entries"])
	assert.Equal(t, 3.0, got["econcast_cache_active_entries"])
}
