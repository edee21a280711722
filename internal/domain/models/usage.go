package models

// OperationUsage aggregates latency and failures for one operation.
type OperationUsage struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	AvgMs  float64 `json:"avg_ms"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
}

type IndicatorCount struct {
	Indicator string `json:"indicator"`
	Count     int    `json:"count"`
}

// UsageReport summarises served forecasts since process start.
type UsageReport struct {
	TotalRequests     int                       `json:"total_requests"`
	SuccessRate       float64                   `json:"success_rate"`
	CacheHitRate      float64                   `json:"cache_hit_rate"`
	AvgDurationMs     float64                   `json:"avg_duration_ms"`
	ByOperation       map[string]OperationUsage `json:"by_operation"`
	ByMethod          map[Method]int            `json:"by_method"`
	PopularIndicators []IndicatorCount          `json:"popular_indicators"`
	DataGaps          []string                  `json:"data_gaps"`
	Recent            []ForecastEvent           `json:"recent"`
}
