package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/loglens/loglens/internal/app"
	catalogpostgres "github.com/loglens/loglens/internal/catalog/postgres"
	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/observability"
	"github.com/loglens/loglens/internal/transform"
)

func main() {
	cfg, err := config.LoadFromEnv("loglens-transform")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalogDB, err := catalogpostgres.Open(ctx, cfg.Catalog)
	if err != nil {
		logger.Error("failed to open catalog db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = catalogDB.Close() }()

	objectStore, err := app.ObjectStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	job, err := transform.NewJob(objectStore, catalogpostgres.NewRepository(catalogDB), transform.Config{
		Namespace:    app.Namespace(cfg),
		Database:     cfg.Query.Database,
		InputPrefix:  cfg.Transform.InputPrefix,
		OutputPrefix: cfg.Transform.OutputPrefix,
		JSONTable:    cfg.Transform.JSONTable,
		ParquetTable: cfg.Transform.ParquetTable,
		WriteParquet: cfg.Transform.WriteParquet,
		Workers:      cfg.Transform.Workers,
	}, logger)
	if err != nil {
		logger.Error("invalid transform config", slog.Any("error", err))
		os.Exit(1)
	}

	summary, err := job.Run(ctx)
	if err != nil {
		logger.Error("transform failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("transform complete",
		slog.Int("objects", len(summary.Objects)),
		slog.Int64("lines", summary.Lines),
		slog.Int64("records", summary.Records),
		slog.Int64("dropped", summary.Dropped),
		slog.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
}
