package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
	"EconCast/internal/services/usage"
	pkgkafka "EconCast/pkg/kafka"
	"EconCast/pkg/queue"
)

// UsageEventType is the queue message type carrying a ForecastEvent.
const UsageEventType = "forecast_event"

// UsageEventsHandler consumes forecast events into the usage tracker. It
// serves both the Kafka consumer and the Redis queue.
type UsageEventsHandler struct {
	topic   string
	tracker *usage.Tracker
}

func NewUsageEventsHandler(topic string, tracker *usage.Tracker) *UsageEventsHandler {
	return &UsageEventsHandler{topic: topic, tracker: tracker}
}

func (h *UsageEventsHandler) Topic() string { return h.topic }

func (h *UsageEventsHandler) Name() string { return "usage-events" }

func (h *UsageEventsHandler) Type() string { return UsageEventType }

func (h *UsageEventsHandler) Handle(_ context.Context, b []byte) error {
	var ev models.ForecastEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return fmt.Errorf("decode forecast event: %w", err)
	}
	if ev.Operation == "" {
		return fmt.Errorf("decode forecast event: missing operation")
	}
	h.tracker.Record(ev)
	return nil
}

// LocalUsageSink feeds events straight into the tracker when no broker is
// configured.
type LocalUsageSink struct {
	tracker *usage.Tracker
}

func NewLocalUsageSink(tracker *usage.Tracker) *LocalUsageSink {
	return &LocalUsageSink{tracker: tracker}
}

func (s *LocalUsageSink) PublishForecastEvent(_ context.Context, ev models.ForecastEvent) error {
	s.tracker.Record(ev)
	return nil
}

func (s *LocalUsageSink) Close() error { return nil }

var (
	_ pkgkafka.MessageHandler = (*UsageEventsHandler)(nil)
	_ queue.Job               = (*UsageEventsHandler)(nil)
	_ domrepo.EventPublisher  = (*LocalUsageSink)(nil)
)
