package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loglens/loglens/internal/catalog"
	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/observability"
	"github.com/loglens/loglens/internal/query/athena"
	"github.com/loglens/loglens/internal/query/duckdb"
	"github.com/loglens/loglens/internal/storage/memory"
)

type emptyLister struct{}

func (emptyLister) ListTables(context.Context, string) ([]catalog.Table, error) {
	return nil, nil
}

func loadConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("loglens-test", func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestQueryServiceDuckDB(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"LOGLENS_QUERY_BACKEND": "duckdb"})
	cfg.Query.DuckDBWorkDir = t.TempDir()

	service, closeFn, err := QueryService(context.Background(), cfg, memory.New(), emptyLister{}, observability.DiscardLogger())
	if err != nil {
		t.Fatalf("QueryService() error = %v", err)
	}
	defer closeFn()
	if _, ok := service.(*duckdb.Service); !ok {
		t.Fatalf("service type = %T", service)
	}

	executor, err := Executor(cfg, service, observability.DiscardLogger())
	if err != nil || executor == nil {
		t.Fatalf("Executor() = %v, %v", executor, err)
	}
}

func TestQueryServiceAthena(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	cfg := loadConfig(t, map[string]string{"LOGLENS_QUERY_BACKEND": "athena"})

	cfg.Query.AccessKeyID = "AKIA"
	_, closeFn, err := QueryService(context.Background(), cfg, memory.New(), emptyLister{}, observability.DiscardLogger())
	if err == nil || !strings.Contains(err.Error(), "secret key") {
		t.Fatalf("QueryService() error = %v, want incomplete key pair", err)
	}
	closeFn()

	for _, secret := range []string{"", "secret"} {
		cfg.Query.AccessKeyID = ""
		if secret != "" {
			cfg.Query.AccessKeyID = "AKIA"
		}
		cfg.Query.SecretAccessKey = secret
		service, closeFn, err := QueryService(context.Background(), cfg, memory.New(), emptyLister{}, observability.DiscardLogger())
		if err != nil {
			t.Fatalf("QueryService(secret=%q) error = %v", secret, err)
		}
		closeFn()
		if _, ok := service.(*athena.Service); !ok {
			t.Fatalf("service type = %T", service)
		}
	}
}

func TestQueryServiceUnknownBackend(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	cfg.Query.Backend = "bigquery"

	if _, _, err := QueryService(context.Background(), cfg, memory.New(), emptyLister{}, nil); err == nil {
		t.Fatal("QueryService() expected error for unknown backend")
	}
}

func TestNamespace(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"LOGLENS_OBJECTSTORE_PREFIX": "team-a"})
	ns := Namespace(cfg)
	if ns.Bucket != "loglens" || ns.Prefix != "team-a" {
		t.Fatalf("Namespace() = %+v", ns)
	}
}
