package repository

import (
	"context"
	"errors"
	"time"

	"EconCast/internal/domain/models"
)

// ErrDatasetUnavailable reports that the dataset collaborator cannot serve
// requests right now.
var ErrDatasetUnavailable = errors.New("dataset unavailable")

// DatasetReader is the dataset-access collaborator: it returns the current
// tabular snapshot the forecasts are computed from.
type DatasetReader interface {
	Table(ctx context.Context) (*models.Table, error)
}

// EventPublisher ships usage events to an analytics sink.
type EventPublisher interface {
	PublishForecastEvent(ctx context.Context, ev models.ForecastEvent) error
	Close() error
}

type Metrics interface {
	RecordForecast(method models.Method, cacheHit bool, d time.Duration)
	RecordError(kind models.ErrorKind)
	RecordDatasetFetch(source string, rows int, d time.Duration, err error)
}
