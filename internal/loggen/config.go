package loggen

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	OutputDir      string
	Files          int
	LinesPerFile   int
	ErrorPercent   int
	WarningPercent int
	Seed           int64
}

func DefaultConfig() Config {
	return Config{
		OutputDir:      "output_logs",
		Files:          5,
		LinesPerFile:   2000,
		ErrorPercent:   10,
		WarningPercent: 20,
		Seed:           time.Now().UTC().UnixNano(),
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if raw, ok := lookup("LOGLENS_LOGGEN_OUTPUT_DIR"); ok {
		cfg.OutputDir = strings.TrimSpace(raw)
	}
	ints := map[string]*int{
		"LOGLENS_LOGGEN_FILES":           &cfg.Files,
		"LOGLENS_LOGGEN_LINES":           &cfg.LinesPerFile,
		"LOGLENS_LOGGEN_ERROR_PERCENT":   &cfg.ErrorPercent,
		"LOGLENS_LOGGEN_WARNING_PERCENT": &cfg.WarningPercent,
	}
	for key, dst := range ints {
		if err := applyInt(lookup, key, dst); err != nil {
			return Config{}, err
		}
	}
	if raw, ok := lookup("LOGLENS_LOGGEN_SEED"); ok && strings.TrimSpace(raw) != "" {
		seed, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOGLENS_LOGGEN_SEED: %w", err)
		}
		cfg.Seed = seed
	}

	if cfg.OutputDir == "" {
		return Config{}, fmt.Errorf("LOGLENS_LOGGEN_OUTPUT_DIR is required")
	}
	if cfg.Files <= 0 {
		return Config{}, fmt.Errorf("LOGLENS_LOGGEN_FILES must be > 0")
	}
	if cfg.LinesPerFile <= 0 {
		return Config{}, fmt.Errorf("LOGLENS_LOGGEN_LINES must be > 0")
	}
	if cfg.ErrorPercent < 0 || cfg.WarningPercent < 0 || cfg.ErrorPercent+cfg.WarningPercent > 100 {
		return Config{}, fmt.Errorf("LOGLENS_LOGGEN_ERROR_PERCENT and LOGLENS_LOGGEN_WARNING_PERCENT must be >= 0 and sum to at most 100")
	}
	return cfg, nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
