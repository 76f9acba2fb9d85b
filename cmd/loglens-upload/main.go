package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/loglens/loglens/internal/app"
	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/observability"
	"github.com/loglens/loglens/internal/upload"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: loglens-upload [flags] <dir>")
		flag.PrintDefaults()
	}
	prefix := flag.String("prefix", "", "destination key prefix (defaults to LOGLENS_TRANSFORM_INPUT_PREFIX)")
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv("loglens-upload")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)
	if *prefix == "" {
		*prefix = cfg.Transform.InputPrefix
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
	summary, err := uploader.Dir(ctx, flag.Arg(0), *prefix)
	if err != nil {
		logger.Error("upload failed", slog.Any("error", err))
		os.Exit(1)
	}
	if len(summary.Failed) > 0 {
		os.Exit(1)
	}
}
