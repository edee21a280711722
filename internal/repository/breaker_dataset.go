package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
	applogger "EconCast/pkg/logger"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the circuit breaker around a dataset reader.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// BreakerDataset stops hammering a failing dataset backend. After
// ConsecutiveFailures errors the circuit opens and calls fail fast with
// ErrDatasetUnavailable until Timeout elapses.
type BreakerDataset struct {
	next domrepo.DatasetReader
	cb   *gobreaker.CircuitBreaker
	l    *applogger.Logger
}

func NewBreakerDataset(next domrepo.DatasetReader, cfg BreakerConfig, l *applogger.Logger) *BreakerDataset {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "dataset"
	}
	b := &BreakerDataset{next: next, l: l}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if b.l != nil {
				b.l.Warn("dataset breaker state change",
					applogger.String("breaker", name),
					applogger.String("from", from.String()),
					applogger.String("to", to.String()),
				)
			}
		},
	})
	return b
}

// State returns the breaker state name.
func (b *BreakerDataset) State() string { return b.cb.State().String() }

func (b *BreakerDataset) Table(ctx context.Context) (*models.Table, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Table(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", domrepo.ErrDatasetUnavailable, err)
		}
		return nil, err
	}
	return out.(*models.Table), nil
}

var _ domrepo.DatasetReader = (*BreakerDataset)(nil)
