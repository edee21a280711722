// Package queue is a small Redis list backed work queue with delayed retries
// and a dead letter list.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Publisher enqueues typed messages.
type Publisher interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Job handles every message of one type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type returns the message type the job consumes.
	Type() string

	Handle(ctx context.Context, payload []byte) error
}

// Config controls the consumer side of a queue.
type Config struct {
	Workers    int           // concurrent BRPOP loops
	RetryLimit int           // attempts after the first before dead-lettering
	RetryDelay time.Duration // delay before a failed message is retried
	PollWait   time.Duration // BRPOP block time
}

func (c *Config) withDefaults() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.RetryLimit < 0 {
		out.RetryLimit = 0
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = 10 * time.Second
	}
	if out.PollWait <= 0 {
		out.PollWait = time.Second
	}
	return &out
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}
