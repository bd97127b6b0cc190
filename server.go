package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arkantrust/idempotent-payments/config"
	"github.com/arkantrust/idempotent-payments/events"
	"github.com/arkantrust/idempotent-payments/handlers"
	"github.com/arkantrust/idempotent-payments/idempotency"
	"github.com/arkantrust/idempotent-payments/payments"
	"github.com/arkantrust/idempotent-payments/store"
)

const (
	limiterSweepInterval = time.Minute
	limiterIdleAfter     = 10 * time.Minute
)

func newLogger(cfg config.LogConfig) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// newHandler assembles the HTTP handler over an open backend.
func newHandler(cfg *config.Config, backend store.Backend, limiter *handlers.RateLimiter, logger *slog.Logger) http.Handler {
	coordinator := idempotency.NewCoordinator(backend, backend,
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger),
	)
	publisher := events.NewPublisher(logger,
		events.StoreAppender(backend),
		events.LogHandler(logger),
	)
	svc := payments.NewService(coordinator, payments.NewLifecycle(backend, nil), backend, publisher, logger)
	return handlers.NewRouter(handlers.New(svc, logger), limiter, cfg.Server.TrustProxy, logger)
}

// serve runs the HTTP server until ctx is canceled or SIGINT/SIGTERM arrives.
func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	backend, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer backend.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var limiter *handlers.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = handlers.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go limiter.Run(ctx, limiterSweepInterval, limiterIdleAfter)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newHandler(cfg, backend, limiter, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", srv.Addr,
			"store", cfg.Store.Driver,
			"trust_proxy", cfg.Server.TrustProxy,
			"db", cfg.Store.Path,
			"idempotency_ttl", cfg.Idempotency.TTL,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
