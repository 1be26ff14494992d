package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/mapsearch/internal/core/config"
	"github.com/mohammed-shakir/mapsearch/internal/core/health"
	middleware "github.com/mohammed-shakir/mapsearch/internal/core/middleware"
	"github.com/mohammed-shakir/mapsearch/internal/core/router"
)

// Handler wires health checks, metrics and the session API.
func Handler(logger *slog.Logger, reg router.Sessions, deps map[string]health.Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(2*time.Second, deps))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	router.Mount(r, logger, reg)
	return r
}

// sets up http and serves until ctx is done
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, reg router.Sessions, deps map[string]health.Pinger) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Handler(logger, reg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
