package usecase

import (
	"context"
	"testing"

	"EconCast/internal/services/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageEventsHandler(t *testing.T) {
	tracker := usage.NewTracker()
	h := NewUsageEventsHandler("events", tracker)
	assert.Equal(t, "events", h.Topic())
	assert.Equal(t, UsageEventType, h.Type())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"operation":"indicator","indicator":"GDP","method":"linear","success":true}`)))
	assert.Equal(t, 1, tracker.Report(0).TotalRequests)

	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"indicator":"GDP"}`)), "missing operation")
	assert.Equal(t, 1, tracker.Report(0).TotalRequests)
}
