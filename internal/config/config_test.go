package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("loglens-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Query.Backend != BackendDuckDB {
		t.Fatalf("Query.Backend = %q", cfg.Query.Backend)
	}
	if cfg.Query.PollInterval != time.Second {
		t.Fatalf("Query.PollInterval = %s", cfg.Query.PollInterval)
	}
	if cfg.Query.Timeout != 0 {
		t.Fatalf("Query.Timeout = %s, want unbounded", cfg.Query.Timeout)
	}
	if cfg.Dashboard.Table != "parsed_logs_json" {
		t.Fatalf("Dashboard.Table = %q", cfg.Dashboard.Table)
	}
	if cfg.Transform.InputPrefix != "raw_logs/" || cfg.Transform.OutputPrefix != "parsed_logs_json/" {
		t.Fatalf("Transform = %+v", cfg.Transform)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("loglens-api", mapLookup(map[string]string{"LOGLENS_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Query.Backend != BackendAthena {
		t.Fatalf("Query.Backend = %q, want athena", cfg.Query.Backend)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("loglens-api", mapLookup(map[string]string{
		"LOGLENS_PROFILE":                 "test",
		"LOGLENS_SERVICE_NAME":            "custom",
		"LOGLENS_HTTP_ADDR":               ":9090",
		"LOGLENS_QUERY_BACKEND":           "ATHENA",
		"LOGLENS_QUERY_DATABASE":          "yonatan-n-glue-db",
		"LOGLENS_QUERY_OUTPUT_LOCATION":   "s3://bucket/athena-results/",
		"LOGLENS_QUERY_WORKGROUP":         "primary",
		"LOGLENS_QUERY_POLL_INTERVAL":     "250ms",
		"LOGLENS_QUERY_TIMEOUT":           "2m",
		"LOGLENS_QUERY_HISTORY_LIMIT":     "7",
		"LOGLENS_DUCKDB_MAX_SCAN_BYTES":   "1024",
		"LOGLENS_TRANSFORM_WRITE_PARQUET": "true",
		"LOGLENS_TRANSFORM_WORKERS":       "2",
		"LOGLENS_OBJECTSTORE_USE_SSL":     "true",
		"LOGLENS_LOG_LEVEL":               "warning",
		"LOGLENS_LOG_JSON":                "false",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Query.Backend != BackendAthena {
		t.Fatalf("Query.Backend = %q", cfg.Query.Backend)
	}
	if cfg.Query.Database != "yonatan-n-glue-db" {
		t.Fatalf("Query.Database = %q", cfg.Query.Database)
	}
	if cfg.Query.Workgroup != "primary" {
		t.Fatalf("Query.Workgroup = %q", cfg.Query.Workgroup)
	}
	if cfg.Query.PollInterval != 250*time.Millisecond {
		t.Fatalf("Query.PollInterval = %s", cfg.Query.PollInterval)
	}
	if cfg.Query.Timeout != 2*time.Minute {
		t.Fatalf("Query.Timeout = %s", cfg.Query.Timeout)
	}
	if cfg.Query.HistoryLimit != 7 {
		t.Fatalf("Query.HistoryLimit = %d", cfg.Query.HistoryLimit)
	}
	if cfg.Query.DuckDBMaxBytes != 1024 {
		t.Fatalf("Query.DuckDBMaxBytes = %d", cfg.Query.DuckDBMaxBytes)
	}
	if !cfg.Transform.WriteParquet || cfg.Transform.Workers != 2 {
		t.Fatalf("Transform = %+v", cfg.Transform)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL = false, want true")
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogJSON {
		t.Fatal("LogJSON = true, want false")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "profile", env: map[string]string{"LOGLENS_PROFILE": "staging"}, want: "LOGLENS_PROFILE"},
		{name: "duration", env: map[string]string{"LOGLENS_QUERY_POLL_INTERVAL": "soon"}, want: "LOGLENS_QUERY_POLL_INTERVAL"},
		{name: "zero poll", env: map[string]string{"LOGLENS_QUERY_POLL_INTERVAL": "0s"}, want: "LOGLENS_QUERY_POLL_INTERVAL"},
		{name: "negative timeout", env: map[string]string{"LOGLENS_QUERY_TIMEOUT": "-1s"}, want: "LOGLENS_QUERY_TIMEOUT"},
		{name: "backend", env: map[string]string{"LOGLENS_QUERY_BACKEND": "presto"}, want: "LOGLENS_QUERY_BACKEND"},
		{name: "database", env: map[string]string{"LOGLENS_QUERY_DATABASE": " "}, want: "LOGLENS_QUERY_DATABASE"},
		{name: "bool", env: map[string]string{"LOGLENS_AUTH_REQUIRED": "maybe"}, want: "LOGLENS_AUTH_REQUIRED"},
		{name: "log level", env: map[string]string{"LOGLENS_LOG_LEVEL": "trace"}, want: "LOGLENS_LOG_LEVEL"},
		{name: "workers", env: map[string]string{"LOGLENS_TRANSFORM_WORKERS": "0"}, want: "LOGLENS_TRANSFORM_WORKERS"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load("loglens-api", mapLookup(tc.env))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoadRequiresLookup(t *testing.T) {
	if _, err := Load("loglens-api", nil); err == nil {
		t.Fatal("expected error for nil lookup")
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}
