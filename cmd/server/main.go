// Command server runs the muniquery HTTP API: the five bond market
// analyses served to the external dashboard, backed by the live data
// source when one is configured and reachable, otherwise by the local
// CSV tables.
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

	"muniquery/internal/analysis"
	"muniquery/internal/config"
	"muniquery/internal/datasource"
	"muniquery/internal/fallback"
	"muniquery/internal/infrastructure"
	transport "muniquery/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, cleanup, err := buildService(ctx, cfg, paths, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	router := transport.NewRouter(service, cfg.Server, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.Int("port", cfg.Server.Port),
			slog.Bool("live", service.Live()))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}
	return nil
}

// buildService probes the live data source once and wires the service
// to whichever path is available. The choice holds for the process
// lifetime; per-query failover does not happen.
func buildService(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*analysis.Service, func(), error) {
	executor, err := datasource.Connect(ctx, cfg.DataSource, logger)
	if err == nil {
		return analysis.NewLive(executor, *cfg, logger), executor.Close, nil
	}

	logger.Warn("live data source unavailable, using fallback CSV tables", "error", err)

	store, err := fallback.Load(paths, cfg.Analysis, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load fallback tables: %w", err)
	}
	return analysis.NewFallback(store, *cfg, logger), func() {}, nil
}
