package usage

import (
	"fmt"
	"sync"
	"testing"

	"EconCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(op, indicator string, ms int64, hit bool, kind models.ErrorKind) models.ForecastEvent {
	return models.ForecastEvent{
		ID:         fmt.Sprintf("%s-%s-%d", op, indicator, ms),
		Operation:  op,
		Indicator:  indicator,
		Method:     models.MethodEnsemble,
		DurationMs: ms,
		CacheHit:   hit,
		Success:    kind == "",
		ErrorKind:  kind,
	}
}

func TestTracker_Report(t *testing.T) {
	tr := NewTracker()
	tr.Record(ev("indicator", "GDP", 10, false, ""))
	tr.Record(ev("indicator", " gdp ", 2, true, ""))
	tr.Record(ev("indicator", "CPI", 6, false, ""))
	tr.Record(ev("indicator", "Tariffs", 4, false, models.KindData))
	tr.Record(ev("trade_balance", "Value", 8, false, ""))

	rep := tr.Report(10)
	assert.Equal(t, 5, rep.TotalRequests)
	assert.Equal(t, 80.0, rep.SuccessRate)
	assert.Equal(t, 20.0, rep.CacheHitRate)
	assert.Equal(t, 6.0, rep.AvgDurationMs)
	assert.Equal(t, 5, rep.ByMethod[models.MethodEnsemble])

	op := rep.ByOperation["indicator"]
	assert.Equal(t, 4, op.Count)
	assert.Equal(t, 1, op.Errors)
	assert.Equal(t, 5.5, op.AvgMs)
	assert.Equal(t, int64(2), op.MinMs)
	assert.Equal(t, int64(10), op.MaxMs)

	require.NotEmpty(t, rep.PopularIndicators)
	assert.Equal(t, models.IndicatorCount{Indicator: "gdp", Count: 2}, rep.PopularIndicators[0])
	assert.Equal(t, []string{"tariffs"}, rep.DataGaps)

	require.Len(t, rep.Recent, 5)
	assert.Equal(t, "trade_balance", rep.Recent[0].Operation)
	assert.Equal(t, "GDP", rep.Recent[4].Indicator)
}

func TestTracker_Empty(t *testing.T) {
	rep := NewTracker().Report(0)
	assert.Equal(t, 0, rep.TotalRequests)
	assert.Equal(t, 0.0, rep.SuccessRate)
	assert.Empty(t, rep.PopularIndicators)
	assert.NotNil(t, rep.DataGaps)
	assert.Empty(t, rep.Recent)
}

func TestTracker_RecentIsBounded(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < DefaultRecent+15; i++ {
		tr.Record(ev("indicator", fmt.Sprintf("I%d", i), int64(i), false, ""))
	}

	rep := tr.Report(DefaultRecent + 50)
	require.Len(t, rep.Recent, DefaultRecent)
	assert.Equal(t, fmt.Sprintf("I%d", DefaultRecent+14), rep.Recent[0].Indicator)
	assert.Equal(t, "I15", rep.Recent[DefaultRecent-1].Indicator)

	limited := tr.Report(3)
	assert.Len(t, limited.Recent, 3)
	assert.Len(t, limited.PopularIndicators, 3)
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tr.Record(ev("indicator", "GDP", 1, i%2 == 0, ""))
				_ = tr.Report(5)
			}
		}()
	}
	wg.Wait()

	rep := tr.Report(5)
	assert.Equal(t, 400, rep.TotalRequests)
	assert.Equal(t, 50.0, rep.CacheHitRate)
}
