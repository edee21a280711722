// Package usage aggregates forecast events into a usage report: volume,
// success and cache-hit rates, per-operation latency, the most requested
// indicators and the indicators that could not be served for lack of data.
package usage

import (
	"math"
	"sort"
	"strings"
	"sync"

	"EconCast/internal/domain/models"
)

const (
	DefaultRecent = 100
	DefaultGaps   = 100
)

type opAgg struct {
	count, errors int
	totalMs       int64
	minMs, maxMs  int64
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	total     int
	successes int
	hits      int
	totalMs   int64
	ops       map[string]*opAgg
	methods   map[models.Method]int
	indicator map[string]int
	gaps      []string
	gapSeen   map[string]bool
	recent    []models.ForecastEvent
	next      int
	maxRecent int
	maxGaps   int
}

func NewTracker() *Tracker {
	return &Tracker{
		ops:       make(map[string]*opAgg),
		methods:   make(map[models.Method]int),
		indicator: make(map[string]int),
		gapSeen:   make(map[string]bool),
		recent:    make([]models.ForecastEvent, 0, DefaultRecent),
		maxRecent: DefaultRecent,
		maxGaps:   DefaultGaps,
	}
}

// Record folds one event into the aggregates.
func (t *Tracker) Record(ev models.ForecastEvent) {
	name := normalize(ev.Indicator)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	t.totalMs += ev.DurationMs
	if ev.Success {
		t.successes++
	}
	if ev.CacheHit {
		t.hits++
	}

	op := t.ops[ev.Operation]
	if op == nil {
		op = &opAgg{minMs: ev.DurationMs, maxMs: ev.DurationMs}
		t.ops[ev.Operation] = op
	}
	op.count++
	op.totalMs += ev.DurationMs
	op.minMs = min(op.minMs, ev.DurationMs)
	op.maxMs = max(op.maxMs, ev.DurationMs)
	if !ev.Success {
		op.errors++
	}

	if ev.Method != "" {
		t.methods[ev.Method]++
	}
	if name != "" {
		t.indicator[name]++
	}
	if ev.ErrorKind == models.KindData && name != "" && !t.gapSeen[name] && len(t.gaps) < t.maxGaps {
		t.gapSeen[name] = true
		t.gaps = append(t.gaps, name)
	}

	if len(t.recent) < t.maxRecent {
		t.recent = append(t.recent, ev)
	} else {
		t.recent[t.next] = ev
	}
	t.next = (t.next + 1) % t.maxRecent
}

// Report returns the aggregates with at most limit popular indicators, gaps
// and recent events (newest first). limit <= 0 means 10.
func (t *Tracker) Report(limit int) models.UsageReport {
	if limit <= 0 {
		limit = 10
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rep := models.UsageReport{
		TotalRequests: t.total,
		ByOperation:   make(map[string]models.OperationUsage, len(t.ops)),
		ByMethod:      make(map[models.Method]int, len(t.methods)),
		DataGaps:      []string{},
	}
	if t.total > 0 {
		rep.SuccessRate = round(float64(t.successes)/float64(t.total)*100, 1)
		rep.CacheHitRate = round(float64(t.hits)/float64(t.total)*100, 1)
		rep.AvgDurationMs = round(float64(t.totalMs)/float64(t.total), 3)
	}
	for name, op := range t.ops {
		rep.ByOperation[name] = models.OperationUsage{
			Count:  op.count,
			Errors: op.errors,
			AvgMs:  round(float64(op.totalMs)/float64(op.count), 3),
			MinMs:  op.minMs,
			MaxMs:  op.maxMs,
		}
	}
	for m, n := range t.methods {
		rep.ByMethod[m] = n
	}

	rep.PopularIndicators = make([]models.IndicatorCount, 0, len(t.indicator))
	for name, n := range t.indicator {
		rep.PopularIndicators = append(rep.PopularIndicators, models.IndicatorCount{Indicator: name, Count: n})
	}
	sort.Slice(rep.PopularIndicators, func(i, j int) bool {
		a, b := rep.PopularIndicators[i], rep.PopularIndicators[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Indicator < b.Indicator
	})
	if len(rep.PopularIndicators) > limit {
		rep.PopularIndicators = rep.PopularIndicators[:limit]
	}

	rep.DataGaps = append(rep.DataGaps, t.gaps[:min(limit, len(t.gaps))]...)

	n := min(limit, len(t.recent))
	rep.Recent = make([]models.ForecastEvent, 0, n)
	for i := 1; i <= n; i++ {
		idx := (t.next - i + len(t.recent)) % len(t.recent)
		rep.Recent = append(rep.Recent, t.recent[idx])
	}
	return rep
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
