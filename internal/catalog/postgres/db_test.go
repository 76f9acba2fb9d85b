package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/loglens/loglens/internal/config"
)

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), config.CatalogConfig{})
	if err == nil || !strings.Contains(err.Error(), "LOGLENS_CATALOG_DSN") {
		t.Fatalf("Open() error = %v", err)
	}
}
