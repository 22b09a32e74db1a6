package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kcearns/landing-server/cmd/config"
	"github.com/kcearns/landing-server/cmd/handlers"
	"github.com/kcearns/landing-server/cmd/logger"
	"github.com/kcearns/landing-server/cmd/metrics"
	"github.com/kcearns/landing-server/cmd/middleware"
	"github.com/kcearns/landing-server/cmd/ratelimit"
	"github.com/kcearns/landing-server/cmd/routes"
)

// Server owns the public listener and, when enabled, the metrics listener
type Server struct {
	config      *config.Config
	log         *logger.Logger
	metrics     metrics.Client
	handler     http.Handler
	rateLimiter *ratelimit.RateLimiter

	public  *http.Server
	private *http.Server
}

// New builds the handler chain:
// Secure -> AccessLog (opt) -> Metrics (opt) -> RateLimit (opt) -> mux
func New(cfg *config.Config, log *logger.Logger, m metrics.Client) (*Server, error) {
	landing, err := handlers.NewLandingHandler(handlers.LandingPage())
	if err != nil {
		return nil, err
	}

	table := routes.NewTable(landing, http.HandlerFunc(handlers.HealthHandler))
	mux := http.NewServeMux()
	table.Register(mux)

	s := &Server{
		config:  cfg,
		log:     log,
		metrics: m,
	}

	var handler http.Handler = mux

	if cfg.RateLimit.Enabled {
		s.rateLimiter = ratelimit.New(cfg.RateLimit, routes.HealthPath)
		handler = s.rateLimiter.Middleware(handler)
		log.Info("rate limiting enabled",
			"requests_per_window", cfg.RateLimit.RequestsPerWindow,
			"window", cfg.RateLimit.Window.String())
	}

	if cfg.Metrics.Enabled {
		handler = middleware.Metrics(m, table, log)(handler)
	}

	if cfg.Logger.AccessLog {
		handler = middleware.AccessLog(log)(handler)
	}

	s.handler = middleware.Secure(handler)

	s.public = &http.Server{
		Addr:              cfg.GetListenAddr(),
		Handler:           s.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", m.Handler())
		s.private = &http.Server{
			Addr:              cfg.GetMetricsAddr(),
			Handler:           metricsMux,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		}
	}

	return s, nil
}

// Handler returns the public handler chain
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured addresses until ctx is cancelled, then shuts
// down gracefully within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	publicLn, err := net.Listen("tcp", s.public.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.public.Addr, err)
	}

	var privateLn net.Listener
	if s.private != nil {
		privateLn, err = net.Listen("tcp", s.private.Addr)
		if err != nil {
			publicLn.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.private.Addr, err)
		}
	}

	return s.Serve(ctx, publicLn, privateLn)
}

// Serve serves on the given listeners. privateLn may be nil when metrics are disabled.
func (s *Server) Serve(ctx context.Context, publicLn, privateLn net.Listener) error {
	defer s.close()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	serve := func(srv *http.Server, ln net.Listener, name string) {
		defer wg.Done()
		s.log.Info("starting HTTP server", "listener", name, "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
	}

	wg.Add(1)
	go serve(s.public, publicLn, "public")

	if privateLn != nil {
		if s.private != nil {
			wg.Add(1)
			go serve(s.private, privateLn, "metrics")
		} else {
			privateLn.Close()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.log.LogShutdown(context.Cause(ctx).Error())
	case runErr = <-errCh:
		s.log.LogError("HTTP server", runErr)
	}

	if err := s.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	wg.Wait()

	return runErr
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.public.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("public server shutdown: %w", err))
	}
	if s.private != nil {
		if err := s.private.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
	if err := s.metrics.Close(); err != nil {
		s.log.LogError("metrics close", err)
	}
}

// RecordBuildInfo publishes a constant build_info gauge
func RecordBuildInfo(m metrics.Client, started time.Time) {
	if err := m.Gauge("build_info", 1, []string{"version:" + logger.Version}, 1); err != nil {
		logger.Debug("failed to record build info", "error", err)
	}
	if err := m.Gauge("start_time_seconds", float64(started.Unix()), nil, 1); err != nil {
		logger.Debug("failed to record start time", "error", err)
	}
}
