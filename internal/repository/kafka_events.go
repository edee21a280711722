package repository

import (
	"context"
	"fmt"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
	applogger "EconCast/pkg/logger"
)

// messagePublisher is the slice of pkg/kafka.Producer used here.
type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaEventPublisher ships forecast usage events to a Kafka topic, keyed by
// indicator so events for one indicator stay ordered.
type KafkaEventPublisher struct {
	p     messagePublisher
	topic string
	l     *applogger.Logger
}

func NewKafkaEventPublisher(p messagePublisher, topic string, l *applogger.Logger) *KafkaEventPublisher {
	return &KafkaEventPublisher{p: p, topic: topic, l: l}
}

func (k *KafkaEventPublisher) PublishForecastEvent(ctx context.Context, ev models.ForecastEvent) error {
	if err := k.p.Publish(ctx, k.topic, []byte(ev.Indicator), ev); err != nil {
		if k.l != nil {
			k.l.Warn("publish forecast event failed",
				applogger.String("topic", k.topic),
				applogger.String("event_id", ev.ID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish forecast event: %w", err)
	}
	return nil
}

func (k *KafkaEventPublisher) Close() error { return k.p.Close() }

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
