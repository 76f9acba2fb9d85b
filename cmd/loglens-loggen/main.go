package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/loglens/loglens/internal/app"
	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/loggen"
	"github.com/loglens/loglens/internal/observability"
	"github.com/loglens/loglens/internal/upload"
)

func main() {
	uploadAfter := flag.Bool("upload", false, "upload the generated files to the transform input prefix")
	flag.Parse()

	cfg, err := config.LoadFromEnv("loglens-loggen")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	genCfg, err := loggen.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load generator config", slog.Any("error", err))
		os.Exit(1)
	}
	generator, err := loggen.NewGenerator(genCfg.Seed, genCfg.ErrorPercent, genCfg.WarningPercent)
	if err != nil {
		logger.Error("invalid generator config", slog.Any("error", err))
		os.Exit(1)
	}

	paths, err := generator.GenerateDir(genCfg.OutputDir, genCfg.Files, genCfg.LinesPerFile)
	if err != nil {
		logger.Error("failed to generate logs", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("generated log files",
		slog.String("dir", genCfg.OutputDir),
		slog.Int("files", len(paths)),
		slog.Int("lines_per_file", genCfg.LinesPerFile),
		slog.Int64("seed", genCfg.Seed),
	)
	if !*uploadAfter {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	objectStore, err := app.ObjectStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}
	uploader, err := upload.New(objectStore, logger)
	if err != nil {
		logger.Error("failed to initialize uploader", slog.Any("error", err))
		os.Exit(1)
	}
	summary, err := uploader.Dir(ctx, genCfg.OutputDir, cfg.Transform.InputPrefix)
	if err != nil {
		logger.Error("upload failed", slog.Any("error", err))
		os.Exit(1)
	}
	if len(summary.Failed) > 0 {
		os.Exit(1)
	}
}
