package server

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"EconCast/pkg/config"
	xhttp "EconCast/pkg/http"
	pkgkafka "EconCast/pkg/kafka"
	applogger "EconCast/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	consumer    *pkgkafka.Consumer
	closers     []closer
	checks      []xhttp.ServerOption
}

type closer struct {
	name string
	fn   func() error
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, h xhttp.Handler, consumer *pkgkafka.Consumer) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:         cfg,
		l:           l,
		httpHandler: h,
		consumer:    consumer,
	}
}

// OnClose registers a resource released during shutdown. Resources close in
// reverse registration order.
func (a *App) OnClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// AddHealthCheck reports fn under name on /healthz. Call before Start.
func (a *App) AddHealthCheck(name string, fn func(context.Context) error) {
	a.checks = append(a.checks, xhttp.WithHealthCheck(name, fn))
}

// Server returns the HTTP server once Start has run.
func (a *App) Server() *xhttp.Server { return a.httpServer }

// Start launches the HTTP server and, when configured, the usage consumer.
func (a *App) Start() error {
	opts := append([]xhttp.ServerOption{
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORS),
		xhttp.WithMetrics(a.cfg.Metrics.Enabled, a.cfg.Metrics.SlowThreshold),
		xhttp.WithLogger(a.l),
	}, a.checks...)
	a.httpServer = xhttp.NewServer(a.httpHandler, opts...)

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("econcast started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("dataset", a.cfg.Dataset.Source),
		applogger.Bool("kafka", a.cfg.Kafka.Enabled),
		applogger.Strings("brokers", a.cfg.Kafka.Brokers),
		applogger.Bool("redis", a.cfg.Redis.Enabled),
	)
	return nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.Shutdown(sctx)
}

// Shutdown gracefully stops all services.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
	a.closers = nil

	a.l.Info("shutdown complete")
	return nil
}
