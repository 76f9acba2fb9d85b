package loggen

import (
	"strings"
	"testing"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.OutputDir != "output_logs" {
		t.Fatalf("OutputDir = %q", cfg.OutputDir)
	}
	if cfg.Files != 5 || cfg.LinesPerFile != 2000 {
		t.Fatalf("Files/LinesPerFile = %d/%d", cfg.Files, cfg.LinesPerFile)
	}
	if cfg.ErrorPercent != 10 || cfg.WarningPercent != 20 {
		t.Fatalf("ErrorPercent/WarningPercent = %d/%d", cfg.ErrorPercent, cfg.WarningPercent)
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"LOGLENS_LOGGEN_OUTPUT_DIR":      "/tmp/logs",
		"LOGLENS_LOGGEN_FILES":           "2",
		"LOGLENS_LOGGEN_LINES":           "10",
		"LOGLENS_LOGGEN_ERROR_PERCENT":   "50",
		"LOGLENS_LOGGEN_WARNING_PERCENT": "25",
		"LOGLENS_LOGGEN_SEED":            "1234",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.OutputDir != "/tmp/logs" || cfg.Files != 2 || cfg.LinesPerFile != 10 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ErrorPercent != 50 || cfg.WarningPercent != 25 || cfg.Seed != 1234 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigFromEnvValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad int", env: map[string]string{"LOGLENS_LOGGEN_FILES": "many"}, want: "LOGLENS_LOGGEN_FILES"},
		{name: "zero lines", env: map[string]string{"LOGLENS_LOGGEN_LINES": "0"}, want: "LOGLENS_LOGGEN_LINES"},
		{name: "bad seed", env: map[string]string{"LOGLENS_LOGGEN_SEED": "x"}, want: "LOGLENS_LOGGEN_SEED"},
		{name: "percent overflow", env: map[string]string{"LOGLENS_LOGGEN_ERROR_PERCENT": "90"}, want: "sum to at most 100"},
		{name: "empty dir", env: map[string]string{"LOGLENS_LOGGEN_OUTPUT_DIR": " "}, want: "LOGLENS_LOGGEN_OUTPUT_DIR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfigFromEnv(mapLookup(tc.env))
			if err == nil {
				t.Fatalf("LoadConfigFromEnv() expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}
