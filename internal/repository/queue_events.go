package repository

import (
	"context"
	"fmt"
	"time"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
	applogger "EconCast/pkg/logger"
	"EconCast/pkg/queue"
)

// eventQueue is the slice of queue.RedisQueue used here.
type eventQueue interface {
	queue.Publisher
	Stop(ctx context.Context) error
}

// QueueEventPublisher ships forecast usage events through a Redis queue and
// owns the queue's lifetime.
type QueueEventPublisher struct {
	q       eventQueue
	msgType string
	l       *applogger.Logger
	stopTTL time.Duration
}

func NewQueueEventPublisher(q eventQueue, msgType string, l *applogger.Logger) *QueueEventPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &QueueEventPublisher{q: q, msgType: msgType, l: l, stopTTL: 5 * time.Second}
}

func (p *QueueEventPublisher) PublishForecastEvent(ctx context.Context, ev models.ForecastEvent) error {
	if err := p.q.PublishMessage(ctx, p.msgType, ev); err != nil {
		p.l.Warn("enqueue forecast event failed",
			applogger.String("event_id", ev.ID),
			applogger.Error(err),
		)
		return fmt.Errorf("enqueue forecast event: %w", err)
	}
	return nil
}

// Close stops the queue workers, waiting at most a few seconds.
func (p *QueueEventPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.stopTTL)
	defer cancel()
	return p.q.Stop(ctx)
}

var _ domrepo.EventPublisher = (*QueueEventPublisher)(nil)
