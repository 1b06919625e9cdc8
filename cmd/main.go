package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/angeloszaimis/oracle-gateway/config"
	"github.com/angeloszaimis/oracle-gateway/internal/handler"
	"github.com/angeloszaimis/oracle-gateway/internal/healthcheck"
	"github.com/angeloszaimis/oracle-gateway/internal/httpserver"
	"github.com/angeloszaimis/oracle-gateway/internal/metrics"
	"github.com/angeloszaimis/oracle-gateway/internal/middleware"
	"github.com/angeloszaimis/oracle-gateway/internal/timesource"
	"github.com/angeloszaimis/oracle-gateway/internal/upstream"
	"github.com/angeloszaimis/oracle-gateway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gw, err := newGateway(cfg, log)
	if err != nil {
		log.Error("Failed to initialize gateway", slog.Any("err", err))
		os.Exit(1)
	}

	gw.collector.Start(ctx)

	if interval := config.Duration(cfg.HealthCheck.Interval); interval > 0 {
		go gw.prober.Watch(ctx, interval)
	}

	srv, err := httpserver.New(cfg.Server.Address, gw.handler, httpserver.Timeouts{
		Read:     config.Duration(cfg.Server.ReadTimeout),
		Write:    config.Duration(cfg.Server.WriteTimeout),
		Idle:     config.Duration(cfg.Server.IdleTimeout),
		Shutdown: config.Duration(cfg.Server.ShutdownTimeout),
	}, log)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Oracle gateway listening",
		slog.String("address", cfg.Server.Address),
		slog.String("upstream", cfg.Upstream.BaseURL))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

type gateway struct {
	handler   http.Handler
	collector *metrics.Collector
	prober    *healthcheck.Prober
}

// newGateway wires the components for cfg. The collector is not started.
func newGateway(cfg *config.Config, log *slog.Logger) (*gateway, error) {
	collector := metrics.NewCollector(cfg.Metrics.BufferSize, cfg.Upstream.BaseURL, log)

	client, err := upstream.New(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: config.Duration(cfg.Upstream.Timeout),
		Breaker: upstream.BreakerConfig{
			Enabled:          cfg.Upstream.Breaker.Enabled,
			FailureThreshold: uint32(cfg.Upstream.Breaker.FailureThreshold),
			OpenTimeout:      config.Duration(cfg.Upstream.Breaker.OpenTimeout),
		},
	}, log, collector)
	if err != nil {
		return nil, err
	}

	prober := healthcheck.New(cfg.Upstream.BaseURL, config.Duration(cfg.Upstream.HealthTimeout), log, collector)
	clock := timesource.New(cfg.TimeSource.URL, config.Duration(cfg.TimeSource.Timeout))

	h := handler.New(log, client, prober, clock)
	mux := setupRouter(h, collector, cfg.Upstream.Table)

	root := withMiddleware(mux, cfg.CORS, log)

	return &gateway{
		handler:   root,
		collector: collector,
		prober:    prober,
	}, nil
}

// withMiddleware wraps h in the gateway middleware. Logging sits outside
// Recovery so a request that panics still gets its access log line.
func withMiddleware(h http.Handler, cors config.CORSConfig, log *slog.Logger) http.Handler {
	return middleware.Chain(h,
		middleware.RequestID(),
		middleware.Logging(log),
		middleware.Recovery(log),
		middleware.CORS(middleware.CORSConfig{
			AllowOrigins:     cors.AllowOrigins,
			AllowMethods:     cors.AllowMethods,
			AllowHeaders:     cors.AllowHeaders,
			AllowCredentials: cors.AllowCredentials,
			MaxAge:           cors.MaxAge,
		}),
	)
}
