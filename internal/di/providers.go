package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"EconCast/internal/domain/models"
	"EconCast/internal/domain/repository"
	"EconCast/internal/handler/api"
	internalrepo "EconCast/internal/repository"
	icache "EconCast/internal/service/cache"
	"EconCast/internal/service/ratelimit"
	"EconCast/internal/services/forecast"
	"EconCast/internal/services/usage"
	"EconCast/internal/usecase"
	pkgcache "EconCast/pkg/cache"
	pkgch "EconCast/pkg/clickhouse"
	"EconCast/pkg/config"
	pkgkafka "EconCast/pkg/kafka"
	applogger "EconCast/pkg/logger"
	"EconCast/pkg/metrics"
	"EconCast/pkg/queue"
	"EconCast/pkg/server"
)

const connectTimeout = 10 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: "econcast",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(nil)
}

// ProvideClickHouseClient creates a ClickHouse client when the dataset lives
// in ClickHouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Dataset.Source != "clickhouse" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRedisCache connects Redis when something uses it: the L2 raw
// dataset cache or the usage event queue.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled || (!cfg.Dataset.RawCache.Enabled && !cfg.Redis.UsageQueue.Enabled) {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
		pkgcache.WithRedisDefaultTTL(cfg.Dataset.RawCache.TTL),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideDataset builds the dataset reader: the configured source, wrapped
// by a circuit breaker and, when enabled, the raw dataset cache.
func ProvideDataset(cfg *config.Config, l *applogger.Logger, ch *pkgch.Client, rc *pkgcache.RedisCache) (repository.DatasetReader, error) {
	var ds repository.DatasetReader
	switch cfg.Dataset.Source {
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("dataset: clickhouse client missing")
		}
		chds, err := internalrepo.NewCHDataset(ch.DB(), cfg.Dataset.Table)
		if err != nil {
			return nil, fmt.Errorf("dataset: %w", err)
		}
		chds.SetLogger(l)
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := ch.InitSchema(ctx, chds.Schema()); err != nil {
			return nil, fmt.Errorf("dataset schema: %w", err)
		}
		ds = chds
	default:
		csvds := internalrepo.NewCSVDataset(cfg.Dataset.CSVPath)
		csvds.SetLogger(l)
		ds = csvds
	}

	if cfg.Dataset.Breaker.Enabled {
		ds = internalrepo.NewBreakerDataset(ds, internalrepo.BreakerConfig{
			Name:                "dataset-" + cfg.Dataset.Source,
			Timeout:             cfg.Dataset.Breaker.Timeout,
			ConsecutiveFailures: cfg.Dataset.Breaker.ConsecutiveFailures,
		}, l)
	}

	if cfg.Dataset.RawCache.Enabled {
		var store pkgcache.BytesCache = pkgcache.NewMemoryBytes(
			pkgcache.WithMemoryMaxSize(cfg.Dataset.RawCache.MaxEntries),
			pkgcache.WithMemoryTTL(cfg.Dataset.RawCache.TTL),
		)
		if rc != nil {
			store = pkgcache.NewLayeredCache(rc,
				pkgcache.WithLayeredMemorySize(cfg.Dataset.RawCache.MaxEntries),
				pkgcache.WithLayeredMemoryTTL(cfg.Dataset.RawCache.TTL),
			)
		}
		cached := internalrepo.NewCachedDataset(ds, store, cfg.Dataset.Source, cfg.Dataset.RawCache.TTL)
		cached.SetLogger(l)
		ds = cached
	}
	return ds, nil
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideUsageTracker creates the in-process usage aggregates.
func ProvideUsageTracker() *usage.Tracker {
	return usage.NewTracker()
}

// ProvideUsageQueue starts the Redis usage event queue. Kafka takes
// precedence, so the queue only runs when Kafka is disabled.
func ProvideUsageQueue(cfg *config.Config, rc *pkgcache.RedisCache, tracker *usage.Tracker, l *applogger.Logger) (*queue.RedisQueue, error) {
	if rc == nil || !cfg.Redis.UsageQueue.Enabled || cfg.Kafka.Enabled {
		return nil, nil
	}
	q := queue.NewRedisQueue(rc.Client(), &queue.Config{
		Workers:    cfg.Redis.UsageQueue.Workers,
		RetryLimit: cfg.Redis.UsageQueue.RetryLimit,
		RetryDelay: cfg.Redis.UsageQueue.RetryDelay,
	},
		queue.WithKeyPrefix(cfg.Redis.Prefix+":usage"),
		queue.WithLogger(l),
	)
	q.RegisterJob(usecase.NewUsageEventsHandler(cfg.Kafka.EventsTopic, tracker))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := q.Start(ctx); err != nil {
		return nil, fmt.Errorf("usage queue: %w", err)
	}
	return q, nil
}

// ProvideEventPublisher ships usage events to Kafka when a producer exists,
// through the Redis queue when that runs, and straight into the tracker
// otherwise.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer, uq *queue.RedisQueue, tracker *usage.Tracker, l *applogger.Logger) repository.EventPublisher {
	switch {
	case producer != nil:
		return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic, l)
	case uq != nil:
		return internalrepo.NewQueueEventPublisher(uq, usecase.UsageEventType, l)
	default:
		return usecase.NewLocalUsageSink(tracker)
	}
}

// ProvideEngine creates the forecasting engine from config.
func ProvideEngine(cfg *config.Config) *forecast.Engine {
	opts := []forecast.Option{
		forecast.WithAlpha(cfg.Forecast.Alpha),
		forecast.WithWindow(cfg.Forecast.Window),
		forecast.WithBandRatio(cfg.Forecast.BandRatio),
	}
	if len(cfg.Forecast.Weights) > 0 {
		w := make(map[models.Method]float64, len(cfg.Forecast.Weights))
		for name, v := range cfg.Forecast.Weights {
			w[models.Method(strings.ToLower(name))] = v
		}
		opts = append(opts, forecast.WithWeights(w))
	}
	return forecast.NewEngine(opts...)
}

// ProvideForecastCache creates the forecast result cache.
func ProvideForecastCache(cfg *config.Config) *icache.ForecastCache {
	return icache.NewForecastCache(
		pkgcache.WithMemoryTTL(cfg.Forecast.Cache.TTL),
		pkgcache.WithMemoryMaxSize(cfg.Forecast.Cache.MaxEntries),
	)
}

// ProvideForecastService creates the forecasting use case.
func ProvideForecastService(
	cfg *config.Config,
	ds repository.DatasetReader,
	engine *forecast.Engine,
	fc *icache.ForecastCache,
	events repository.EventPublisher,
	rec *metrics.Recorder,
	l *applogger.Logger,
) *usecase.ForecastService {
	return usecase.NewForecastService(ds, engine, fc,
		usecase.WithFlowColumn(cfg.Dataset.FlowColumn),
		usecase.WithDatasetSource(cfg.Dataset.Source),
		usecase.WithEventPublisher(events),
		usecase.WithMetrics(rec),
		usecase.WithLogger(l),
	)
}

// ProvideRateLimiter creates the per-client limiter, or nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

// ProvideHTTPHandler creates the forecasting HTTP handler.
func ProvideHTTPHandler(l *applogger.Logger, svc *usecase.ForecastService, tracker *usage.Tracker, rl *ratelimit.Limiter) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(l, svc, tracker, rl)
}

// ProvideKafkaConsumer creates the usage events consumer when Kafka and the
// consumer are both enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, tracker *usage.Tracker) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewUsageEventsHandler(cfg.Kafka.EventsTopic, tracker))
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, data []byte, err error) {
			l.Warn("usage event rejected",
				applogger.String("topic", topic),
				applogger.Int("bytes", len(data)),
				applogger.Error(err),
			)
		},
	})
	return consumer, nil
}

// ProvideApp creates the application server and registers every resource
// it has to release on shutdown.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.ForecastEchoHandler,
	consumer *pkgkafka.Consumer,
	ch *pkgch.Client,
	rc *pkgcache.RedisCache,
	producer *pkgkafka.Producer,
	events repository.EventPublisher,
	rec *metrics.Recorder,
	svc *usecase.ForecastService,
) *server.App {
	app := server.New(cfg, l, handler, consumer)

	if ch != nil {
		app.AddHealthCheck("clickhouse", ch.Health)
		app.OnClose("clickhouse", ch.Close)
	}
	if rc != nil {
		app.OnClose("redis", rc.Close)
	}
	// events owns the Kafka producer or the usage queue when either runs
	app.OnClose("usage events", events.Close)

	if cfg.Log.Collect.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        "econcast",
			TimeInterval:   cfg.Log.Collect.Interval,
			CountThreshold: cfg.Log.Collect.CountThreshold,
			Topic:          cfg.Log.Collect.Topic,
			Publisher:      producer,
		})
		app.OnClose("log collector", func() error {
			l.RemoveCollector()
			return nil
		})
	}

	if cfg.Metrics.Enabled {
		rec.RegisterCacheGauges(svc.CacheStats)
	}
	return app
}
