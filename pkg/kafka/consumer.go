package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "EconCast/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	brokers    []string
	groupID    string
	workers    int
	buffer     int
	retryMax   int
	backoffMin time.Duration
	backoffMax time.Duration
}

func defaultConsumerConfig() consumerConfig {
	return consumerConfig{
		groupID:    "econcast",
		workers:    1,
		buffer:     64,
		retryMax:   3,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
	}
}

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *consumerConfig) { c.brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *consumerConfig) {
		if groupID != "" {
			c.groupID = groupID
		}
	}
}

// WithConsumerWorkers sets how many goroutines run handlers.
func WithConsumerWorkers(n int) ConsumerOption {
	return func(c *consumerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *consumerConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithConsumerRetry sets how often a failing handler is retried and the
// exponential backoff range between attempts.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *consumerConfig) {
		c.retryMax = max
		c.backoffMin = backoffMin
		c.backoffMax = backoffMax
	}
}

// Consumer fans registered topics into a worker pool. A message is
// committed once its handler succeeds or runs out of retries; messages
// abandoned during shutdown stay uncommitted and are redelivered.
type Consumer struct {
	cfg       consumerConfig
	handlers  map[string]MessageHandler
	readers   map[string]messageReader
	newReader func(topic string) messageReader
	hook      ConsumerHook
	l         *applogger.Logger

	jobs     chan kafka.Message
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewConsumer creates a consumer group member for the given brokers.
func NewConsumer(l *applogger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.brokers) == 0 {
		return nil, errors.New("kafka consumer: brokers are required")
	}
	c := newConsumer(cfg, l, func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.brokers,
			Topic:    topic,
			GroupID:  cfg.groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	})
	return c, nil
}

func newConsumer(cfg consumerConfig, l *applogger.Logger, newReader func(string) messageReader) *Consumer {
	if l == nil {
		l = applogger.Nop()
	}
	registerConsumerCollectors()
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:       cfg,
		handlers:  make(map[string]MessageHandler),
		readers:   make(map[string]messageReader),
		newReader: newReader,
		hook:      NoopHook{},
		l:         l,
		jobs:      make(chan kafka.Message, cfg.buffer),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// RegisterHandler binds a handler to its topic. Call before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		c.l.Warn("kafka consumer: duplicate handler ignored", applogger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start opens one reader per topic and launches the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}

	var fetchers sync.WaitGroup
	for topic := range c.handlers {
		r := c.newReader(topic)
		c.readers[topic] = r
		fetchers.Add(1)
		go func(topic string) {
			defer fetchers.Done()
			c.fetch(topic, r)
		}(topic)
	}
	go func() {
		fetchers.Wait()
		close(c.jobs)
	}()

	for i := 0; i < c.cfg.workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for msg := range c.jobs {
				c.process(msg)
			}
		}()
	}

	c.l.Info("kafka consumer started",
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.workers),
		applogger.String("group", c.cfg.groupID),
	)
	return nil
}

// Stop cancels fetching, waits for in-flight handlers and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.cancel()

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.l.Warn("kafka consumer: close reader", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
	})
	return err
}

func (c *Consumer) fetch(topic string, r messageReader) {
	for {
		msg, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.l.Error("kafka consumer: fetch", applogger.String("topic", topic), applogger.Error(err))
			if !c.sleep(c.cfg.backoffMin) {
				return
			}
			continue
		}
		select {
		case c.jobs <- msg:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.jobs)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) process(msg kafka.Message) {
	h, ok := c.handlers[msg.Topic]
	if !ok {
		return
	}
	start := time.Now()
	defer func() {
		consumerHandleLatency.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())
	}()

	abandoned, err := c.handleWithRetry(h, msg)
	if abandoned {
		return
	}
	if err != nil {
		c.hook.OnError(c.ctx, msg.Topic, msg.Value, err)
		consumerErrorsTotal.WithLabelValues(msg.Topic).Inc()
	}

	cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if cerr := c.readers[msg.Topic].CommitMessages(cctx, msg); cerr != nil {
		c.l.Error("kafka consumer: commit", applogger.String("topic", msg.Topic), applogger.Error(cerr))
	}
}

// handleWithRetry reports abandoned when shutdown interrupted the backoff.
func (c *Consumer) handleWithRetry(h MessageHandler, msg kafka.Message) (abandoned bool, err error) {
	for attempt := 1; ; attempt++ {
		err = c.handleOnce(h, msg)
		if err == nil || attempt > c.cfg.retryMax {
			return false, err
		}
		if !c.sleep(backoff(c.cfg.backoffMin, c.cfg.backoffMax, attempt)) {
			return true, err
		}
	}
}

func (c *Consumer) handleOnce(h MessageHandler, msg kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			c.l.Error("kafka consumer: handler panic", applogger.String("topic", msg.Topic), applogger.Any("panic", r))
		}
	}()
	ctx, data, err := c.hook.BeforeHandle(context.WithoutCancel(c.ctx), msg.Topic, msg.Value)
	if err != nil {
		return err
	}
	err = h.Handle(ctx, data)
	c.hook.AfterHandle(ctx, msg.Topic, data, err)
	return err
}

func (c *Consumer) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// backoff doubles from lo per attempt, caps at hi and subtracts up to half
// as jitter.
func backoff(lo, hi time.Duration, attempt int) time.Duration {
	if lo <= 0 {
		lo = 50 * time.Millisecond
	}
	if hi < lo {
		hi = lo
	}
	d := lo << uint(attempt-1)
	if d <= 0 || d > hi {
		d = hi
	}
	return d - time.Duration(rand.Int63n(int64(d)/2+1))
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerErrorsTotal   *prometheus.CounterVec
	consumerCollectors    sync.Once
)

func registerConsumerCollectors() {
	consumerCollectors.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "econcast_kafka_consumer_queue_depth",
			Help: "Fetched messages waiting for a worker.",
		}, []string{"topic"})
		consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "econcast_kafka_consumer_handle_seconds",
			Help: "Handling time per message including retries.",
		}, []string{"topic"})
		consumerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "econcast_kafka_consumer_errors_total",
			Help: "Messages whose handler failed after all retries.",
		}, []string{"topic"})
	})
}
