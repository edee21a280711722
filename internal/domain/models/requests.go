package models

// Requests for forecasting HTTP endpoints. Defined in domain for consistency and reuse.
// Horizon stays a string so an explicit 0 survives defaulting and reaches the
// engine, which rejects it as a parameter error.

type ForecastHTTPRequest struct {
	Indicator string `query:"indicator" json:"indicator" validate:"required,max=200"`
	Horizon   string `query:"horizon" json:"horizon" default:"6" validate:"max=4"`
	Method    string `query:"method" json:"method" default:"ensemble"`
}

type TradeBalanceHTTPRequest struct {
	ExportIndicator string `query:"export" json:"export_indicator" default:"Value" validate:"max=200"`
	ImportIndicator string `query:"import" json:"import_indicator" default:"Value" validate:"max=200"`
	Horizon         string `query:"horizon" json:"horizon" default:"6" validate:"max=4"`
	Method          string `query:"method" json:"method" default:"ensemble"`
}
