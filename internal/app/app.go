// Package app builds the shared runtime components of the loglens binaries
// from a loaded config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/observability"
	"github.com/loglens/loglens/internal/query"
	"github.com/loglens/loglens/internal/query/athena"
	"github.com/loglens/loglens/internal/query/duckdb"
	"github.com/loglens/loglens/internal/storage"
	s3store "github.com/loglens/loglens/internal/storage/s3"
)

func ObjectStore(ctx context.Context, cfg config.Config) (*s3store.Store, error) {
	return s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
}

func Namespace(cfg config.Config) storage.Namespace {
	return storage.Namespace{Bucket: cfg.ObjectStore.Bucket, Prefix: cfg.ObjectStore.Prefix}
}

// QueryService returns the configured backend. The returned close function
// releases backend resources and is never nil.
func QueryService(ctx context.Context, cfg config.Config, store storage.ObjectStore, tables duckdb.TableLister, logger *slog.Logger) (query.Service, func(), error) {
	switch cfg.Query.Backend {
	case config.BackendAthena:
		service, err := athena.New(ctx, athena.Config{
			Region:          cfg.Query.Region,
			AccessKeyID:     cfg.Query.AccessKeyID,
			SecretAccessKey: cfg.Query.SecretAccessKey,
			Workgroup:       cfg.Query.Workgroup,
			Endpoint:        cfg.Query.Endpoint,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return service, func() {}, nil
	case config.BackendDuckDB:
		service, err := duckdb.NewService(store, tables, duckdb.Config{
			Namespace: Namespace(cfg),
			WorkDir:   cfg.Query.DuckDBWorkDir,
			MaxBytes:  cfg.Query.DuckDBMaxBytes,
		}, logger)
		if err != nil {
			return nil, func() {}, err
		}
		return service, service.Close, nil
	default:
		return nil, func() {}, fmt.Errorf("unsupported query backend %q", cfg.Query.Backend)
	}
}

func Executor(cfg config.Config, service query.Service, logger *slog.Logger) (*query.Executor, error) {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return query.NewExecutor(service, query.ExecutorConfig{
		Database:       cfg.Query.Database,
		OutputLocation: cfg.Query.OutputLocation,
		PollInterval:   cfg.Query.PollInterval,
		Timeout:        cfg.Query.Timeout,
	}, logger.With(slog.String("backend", string(cfg.Query.Backend))))
}
