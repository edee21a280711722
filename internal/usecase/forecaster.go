package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
	domsvc "EconCast/internal/domain/service"
	icache "EconCast/internal/service/cache"
	"EconCast/internal/services/features"
	applogger "EconCast/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	OperationIndicator    = "indicator"
	OperationTradeBalance = "trade_balance"

	// balancedTolerance is the share of the mean absolute projected trade
	// level within which an average balance counts as balanced.
	balancedTolerance = 0.001

	eventPublishTimeout = 2 * time.Second
)

// ServiceOption configures ForecastService.
type ServiceOption func(*ForecastService)

// WithFlowColumn sets the column used to split export and import rows.
func WithFlowColumn(name string) ServiceOption {
	return func(s *ForecastService) {
		if name != "" {
			s.flowColumn = name
		}
	}
}

// WithDatasetSource names the dataset backend in metrics.
func WithDatasetSource(name string) ServiceOption {
	return func(s *ForecastService) {
		s.source = name
	}
}

func WithEventPublisher(p domrepo.EventPublisher) ServiceOption {
	return func(s *ForecastService) {
		if p != nil {
			s.events = p
		}
	}
}

func WithMetrics(m domrepo.Metrics) ServiceOption {
	return func(s *ForecastService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) ServiceOption {
	return func(s *ForecastService) {
		if l != nil {
			s.l = l
		}
	}
}

// ForecastService answers indicator and trade balance forecast requests over
// the current dataset snapshot, memoising results by request and data
// fingerprint.
type ForecastService struct {
	dataset    domrepo.DatasetReader
	engine     domsvc.Engine
	cache      *icache.ForecastCache
	events     domrepo.EventPublisher
	metrics    domrepo.Metrics
	l          *applogger.Logger
	flowColumn string
	source     string
	printer    *message.Printer
	now        func() time.Time
}

func NewForecastService(dataset domrepo.DatasetReader, engine domsvc.Engine, cache *icache.ForecastCache, opts ...ServiceOption) *ForecastService {
	s := &ForecastService{
		dataset:    dataset,
		engine:     engine,
		cache:      cache,
		events:     noopEvents{},
		metrics:    noopMetrics{},
		l:          applogger.Nop(),
		flowColumn: "Flow",
		source:     "dataset",
		printer:    message.NewPrinter(language.English),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForecastIndicator forecasts horizon steps of indicator with method; an
// empty method means ensemble.
func (s *ForecastService) ForecastIndicator(ctx context.Context, indicator string, horizon int, method string) (res *models.ForecastResult, err error) {
	start := s.now()
	ev := models.ForecastEvent{Operation: OperationIndicator, Indicator: indicator, Horizon: horizon}
	defer func() { s.finish(ctx, &ev, start, err) }()

	m, err := s.validate(indicator, horizon, method)
	if err != nil {
		return nil, err
	}
	ev.Method = m

	table, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	series, err := features.ExtractSeries(table, indicator)
	if err != nil {
		return nil, err
	}
	res, hit, err := s.forecastSeries(indicator, series, horizon, m)
	ev.CacheHit = hit
	return res, err
}

// ForecastTradeBalance projects exports minus imports with the ensemble.
func (s *ForecastService) ForecastTradeBalance(ctx context.Context, exportIndicator, importIndicator string, horizon int) (*models.TradeBalanceResult, error) {
	return s.ForecastTradeBalanceWithMethod(ctx, exportIndicator, importIndicator, horizon, string(models.MethodEnsemble))
}

// ForecastTradeBalanceWithMethod is ForecastTradeBalance with both sides
// forecast by method. When the table has a flow column, export and import
// rows are selected by it before the indicators are resolved. A failure on
// either side fails the whole request.
func (s *ForecastService) ForecastTradeBalanceWithMethod(ctx context.Context, exportIndicator, importIndicator string, horizon int, method string) (res *models.TradeBalanceResult, err error) {
	start := s.now()
	ev := models.ForecastEvent{
		Operation: OperationTradeBalance,
		Indicator: exportIndicator + "-" + importIndicator,
		Horizon:   horizon,
	}
	defer func() { s.finish(ctx, &ev, start, err) }()

	m, err := s.validate(exportIndicator, horizon, method)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(importIndicator) == "" {
		return nil, models.NewParameterError("import indicator is required")
	}
	ev.Method = m

	table, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	exportTable, importTable := table, table
	if col, ok := table.HasColumn(s.flowColumn); ok {
		exportTable = table.FilterContains(col, "export")
		importTable = table.FilterContains(col, "import")
	}

	exportSeries, err := features.ExtractSeries(exportTable, exportIndicator)
	if err != nil {
		return nil, fmt.Errorf("export side: %w", err)
	}
	importSeries, err := features.ExtractSeries(importTable, importIndicator)
	if err != nil {
		return nil, fmt.Errorf("import side: %w", err)
	}

	exp, expHit, err := s.forecastSeries(exportIndicator, exportSeries, horizon, m)
	if err != nil {
		return nil, fmt.Errorf("export side: %w", err)
	}
	imp, impHit, err := s.forecastSeries(importIndicator, importSeries, horizon, m)
	if err != nil {
		return nil, fmt.Errorf("import side: %w", err)
	}
	ev.CacheHit = expHit && impHit

	return s.composeTradeBalance(exportIndicator, importIndicator, horizon, exportSeries, importSeries, exp, imp), nil
}

// CacheStats exposes the forecast cache counters.
func (s *ForecastService) CacheStats() models.CacheStats {
	return s.cache.Stats()
}

func (s *ForecastService) validate(indicator string, horizon int, method string) (models.Method, error) {
	m, err := models.ParseMethod(method)
	if err != nil {
		return "", err
	}
	req := models.ForecastRequest{Indicator: indicator, Horizon: horizon, Method: m}
	if err := req.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

func (s *ForecastService) fetch(ctx context.Context) (*models.Table, error) {
	start := s.now()
	t, err := s.dataset.Table(ctx)
	s.metrics.RecordDatasetFetch(s.source, t.Len(), s.now().Sub(start), err)
	if err != nil {
		s.l.Error("dataset fetch failed", applogger.String("source", s.source), applogger.Error(err))
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	return t, nil
}

func (s *ForecastService) forecastSeries(indicator string, series features.Series, horizon int, m models.Method) (*models.ForecastResult, bool, error) {
	key := icache.Key(indicator, horizon, m, features.Fingerprint(series.Values))
	res, hit, err := s.cache.GetOrCompute(key, func() (*models.ForecastResult, error) {
		r, err := s.engine.Forecast(series.Values, horizon, m)
		if err != nil {
			return nil, err
		}
		r.Indicator = indicator
		return r, nil
	})
	if err != nil {
		return nil, false, err
	}
	s.l.Debug("forecast served",
		applogger.String("indicator", indicator),
		applogger.String("column", series.Column),
		applogger.String("method", string(m)),
		applogger.Int("horizon", horizon),
		applogger.String("key", key),
		applogger.Bool("cache_hit", hit),
	)
	if len(res.Diagnostics.Dropped) > 0 {
		for method, reason := range res.Diagnostics.Dropped {
			s.l.Debug("ensemble member dropped",
				applogger.String("indicator", indicator),
				applogger.String("method", string(method)),
				applogger.String("reason", reason),
			)
		}
	}
	return res, hit, nil
}

func (s *ForecastService) composeTradeBalance(exportIndicator, importIndicator string, horizon int, expSeries, impSeries features.Series, exp, imp *models.ForecastResult) *models.TradeBalanceResult {
	out := &models.TradeBalanceResult{
		ExportIndicator:      exportIndicator,
		ImportIndicator:      importIndicator,
		Horizon:              horizon,
		ExportForecast:       exp.Forecasts,
		ImportForecast:       imp.Forecasts,
		TradeBalanceForecast: make([]float64, horizon),
		CurrentBalance:       expSeries.Last() - impSeries.Last(),
	}

	var sum, level float64
	for i := 0; i < horizon; i++ {
		out.TradeBalanceForecast[i] = exp.Forecasts[i] - imp.Forecasts[i]
		sum += out.TradeBalanceForecast[i]
		level += (math.Abs(exp.Forecasts[i]) + math.Abs(imp.Forecasts[i])) / 2
	}
	avg := sum / float64(horizon)
	level /= float64(horizon)
	out.AverageBalance = avg

	switch {
	case math.Abs(avg) <= balancedTolerance*level:
		out.Position = models.PositionBalanced
		out.Interpretation = s.printer.Sprintf("Trade roughly balanced: average %.0f over %d period(s)", avg, horizon)
	case avg > 0:
		out.Position = models.PositionSurplus
		out.Interpretation = s.printer.Sprintf("Trade surplus expected: average %.0f over %d period(s)", avg, horizon)
	default:
		out.Position = models.PositionDeficit
		out.Interpretation = s.printer.Sprintf("Trade deficit expected: average %.0f over %d period(s)", math.Abs(avg), horizon)
	}
	return out
}

// finish records metrics and ships the usage event. Publishing failures are
// logged only.
func (s *ForecastService) finish(ctx context.Context, ev *models.ForecastEvent, start time.Time, err error) {
	d := s.now().Sub(start)
	ev.ID = uuid.NewString()
	ev.Timestamp = start.UTC()
	ev.DurationMs = d.Milliseconds()
	ev.Success = err == nil

	if err != nil {
		ev.ErrorKind = models.KindOf(err)
		ev.Error = err.Error()
		s.metrics.RecordError(ev.ErrorKind)
		fields := []applogger.Field{
			applogger.String("operation", ev.Operation),
			applogger.String("indicator", ev.Indicator),
			applogger.Int("horizon", ev.Horizon),
			applogger.Error(err),
		}
		if ev.ErrorKind == "" {
			s.l.Error("forecast failed", fields...)
		} else {
			s.l.Warn("forecast rejected", append(fields, applogger.String("kind", string(ev.ErrorKind)))...)
		}
	} else {
		s.metrics.RecordForecast(ev.Method, ev.CacheHit, d)
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if perr := s.events.PublishForecastEvent(pctx, *ev); perr != nil {
		s.l.Warn("usage event dropped", applogger.String("event_id", ev.ID), applogger.Error(perr))
	}
}

type noopEvents struct{}

func (noopEvents) PublishForecastEvent(context.Context, models.ForecastEvent) error { return nil }
func (noopEvents) Close() error                                                     { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordForecast(models.Method, bool, time.Duration)    {}
func (noopMetrics) RecordError(models.ErrorKind)                         {}
func (noopMetrics) RecordDatasetFetch(string, int, time.Duration, error) {}
