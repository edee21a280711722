package api

import (
	"strconv"
	"strings"
	"time"

	models "EconCast/internal/domain/models"
	"EconCast/internal/service/metrics"
	"EconCast/internal/service/ratelimit"
	"EconCast/internal/services/usage"
	"EconCast/internal/usecase"
	xhttp "EconCast/pkg/http"
	xlogger "EconCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

const defaultUsageLimit = 10

// ForecastEchoHandler exposes the forecasting service over HTTP.
type ForecastEchoHandler struct {
	logger  *xlogger.Logger
	svc     *usecase.ForecastService
	tracker *usage.Tracker
	rl      *ratelimit.Limiter
}

func NewForecastEchoHandler(logger *xlogger.Logger, svc *usecase.ForecastService, tracker *usage.Tracker, rl *ratelimit.Limiter) *ForecastEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastEchoHandler{logger: logger, svc: svc, tracker: tracker, rl: rl}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	if h.rl != nil {
		g.Use(h.rl.Middleware())
	}
	g.GET("/forecast", h.Forecast)
	g.GET("/trade-balance", h.TradeBalance)
	g.GET("/cache/stats", h.CacheStats)
	g.GET("/usage", h.Usage)
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	defer observe("forecast", time.Now())
	req := &models.ForecastHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.fail(c, "forecast", xhttp.BadRequestResponse(c, verr))
	}
	horizon, ok := parseHorizon(req.Horizon)
	if !ok {
		return h.fail(c, "forecast", xhttp.BadRequestResponse(c, horizonError(req.Horizon)))
	}

	res, err := h.svc.ForecastIndicator(c.Request().Context(), req.Indicator, horizon, req.Method)
	if err != nil {
		h.logger.Warn("forecast usecase error",
			xlogger.String("indicator", req.Indicator),
			xlogger.Error(err),
		)
		return h.fail(c, "forecast", xhttp.AppErrorResponse(c, err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) TradeBalance(c echo.Context) error {
	defer observe("trade_balance", time.Now())
	req := &models.TradeBalanceHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.fail(c, "trade_balance", xhttp.BadRequestResponse(c, verr))
	}
	horizon, ok := parseHorizon(req.Horizon)
	if !ok {
		return h.fail(c, "trade_balance", xhttp.BadRequestResponse(c, horizonError(req.Horizon)))
	}

	res, err := h.svc.ForecastTradeBalanceWithMethod(c.Request().Context(), req.ExportIndicator, req.ImportIndicator, horizon, req.Method)
	if err != nil {
		h.logger.Warn("trade balance usecase error",
			xlogger.String("export", req.ExportIndicator),
			xlogger.String("import", req.ImportIndicator),
			xlogger.Error(err),
		)
		return h.fail(c, "trade_balance", xhttp.AppErrorResponse(c, err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) CacheStats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.CacheStats())
}

// Usage reports aggregated forecast usage. Without a tracker the report is
// empty.
func (h *ForecastEchoHandler) Usage(c echo.Context) error {
	limit := xhttp.QueryIntDefault(c, "limit", defaultUsageLimit)
	if h.tracker == nil {
		return xhttp.SuccessResponse(c, models.UsageReport{})
	}
	return xhttp.SuccessResponse(c, h.tracker.Report(limit))
}

func (h *ForecastEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.EndpointErrors.WithLabelValues(endpoint, strconv.Itoa(c.Response().Status)).Inc()
	return err
}

func observe(endpoint string, start time.Time) {
	metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func parseHorizon(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}

func horizonError(raw string) []xhttp.ValidationError {
	return []xhttp.ValidationError{{
		Code:    "ERR_PARAMETER",
		Field:   "horizon",
		Message: "horizon must be an integer",
		Params:  map[string]interface{}{"value": raw},
	}}
}
