package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"EconCast/pkg/http/middleware"
	applogger "EconCast/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerOption configures Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	host            string
	port            int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	cors            bool
	metrics         bool
	slowThreshold   time.Duration
	checks          []healthCheck
	l               *applogger.Logger
}

type healthCheck struct {
	name string
	fn   func(context.Context) error
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		host:            "0.0.0.0",
		port:            8080,
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Second,
		shutdownTimeout: 10 * time.Second,
		cors:            true,
		metrics:         true,
		slowThreshold:   500 * time.Millisecond,
		l:               applogger.Nop(),
	}
}

func WithHost(host string) ServerOption {
	return func(c *serverConfig) { c.host = host }
}

// WithPort sets the listen port; 0 picks a free one.
func WithPort(port int) ServerOption {
	return func(c *serverConfig) { c.port = port }
}

// WithTimeouts sets the read, write and graceful shutdown timeouts. Zero
// values keep the defaults.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *serverConfig) {
		if read > 0 {
			c.readTimeout = read
		}
		if write > 0 {
			c.writeTimeout = write
		}
		if shutdown > 0 {
			c.shutdownTimeout = shutdown
		}
	}
}

func WithCORS(enabled bool) ServerOption {
	return func(c *serverConfig) { c.cors = enabled }
}

// WithMetrics toggles request instrumentation and the /metrics route.
func WithMetrics(enabled bool, slow time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.metrics = enabled
		if slow > 0 {
			c.slowThreshold = slow
		}
	}
}

// WithHealthCheck adds a dependency probe to /healthz. Any failing probe
// turns the response into a 503.
func WithHealthCheck(name string, fn func(context.Context) error) ServerOption {
	return func(c *serverConfig) {
		if fn != nil {
			c.checks = append(c.checks, healthCheck{name: name, fn: fn})
		}
	}
}

func WithLogger(l *applogger.Logger) ServerOption {
	return func(c *serverConfig) {
		if l != nil {
			c.l = l
		}
	}
}

// Server serves the API on Echo with the shared middleware chain.
type Server struct {
	echo *echo.Echo
	cfg  serverConfig
	ln   net.Listener
}

// NewServer builds the Echo instance and registers handler routes next to
// /healthz and, when metrics are on, /metrics.
func NewServer(handler Handler, opts ...ServerOption) *Server {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.readTimeout
	e.Server.WriteTimeout = cfg.writeTimeout

	e.Use(middleware.Recover(cfg.l), middleware.RequestLogging(cfg.l))
	if cfg.metrics {
		e.Use(middleware.Metrics(cfg.l, cfg.slowThreshold))
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
	if cfg.cors {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodGet, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			MaxAge:       10 * time.Minute,
		}))
	}
	e.GET("/healthz", healthHandler(cfg.checks))
	if handler != nil {
		handler.RegisterRoutes(e)
	}

	return &Server{echo: e, cfg: cfg}
}

func healthHandler(checks []healthCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		failed := make(map[string]string)
		for _, hc := range checks {
			if err := hc.fn(ctx); err != nil {
				failed[hc.name] = err.Error()
			}
		}
		if len(failed) > 0 {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		}
		return c.String(http.StatusOK, "ok")
	}
}

// Addr returns the bound address after Start, the configured one before.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return net.JoinHostPort(s.cfg.host, strconv.Itoa(s.cfg.port))
}

// Start binds the listener, so address errors surface here, and serves in
// the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr(), err)
	}
	s.ln = ln
	s.echo.Listener = ln

	go func() {
		s.cfg.l.Info("http server listening", applogger.String("addr", ln.Addr().String()))
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.cfg.l.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests within the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.cfg.l.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}
