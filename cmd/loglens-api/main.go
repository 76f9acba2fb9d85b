package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loglens/loglens/internal/api"
	"github.com/loglens/loglens/internal/app"
	"github.com/loglens/loglens/internal/auth"
	catalogpostgres "github.com/loglens/loglens/internal/catalog/postgres"
	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/dashboard"
	"github.com/loglens/loglens/internal/observability"
	"github.com/loglens/loglens/internal/query"
)

func main() {
	cfg, err := config.LoadFromEnv("loglens-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	catalogDB, err := catalogpostgres.Open(context.Background(), cfg.Catalog)
	if err != nil {
		logger.Error("failed to open catalog db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = catalogDB.Close() }()
	catalogRepo := catalogpostgres.NewRepository(catalogDB)

	objectStore, err := app.ObjectStore(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	service, closeService, err := app.QueryService(context.Background(), cfg, objectStore, catalogRepo, logger)
	if err != nil {
		logger.Error("failed to initialize query service", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeService()

	executor, err := app.Executor(cfg, service, logger)
	if err != nil {
		logger.Error("failed to initialize query executor", slog.Any("error", err))
		os.Exit(1)
	}
	board, err := dashboard.New(executor, cfg.Query.Database, cfg.Dashboard.Table)
	if err != nil {
		logger.Error("failed to initialize dashboard", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:    logger,
		Queries:   executor,
		History:   query.NewHistory(cfg.Query.HistoryLimit),
		Dashboard: board,
		Catalog:   catalogRepo,
		Readiness: api.CombineReadinessChecks(
			catalogRepo.HealthCheck,
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("backend", string(cfg.Query.Backend)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
