package migrations

import (
	"strings"
	"testing"
)

func TestCatalogMigrationContainsRequiredTablesAndIndexes(t *testing.T) {
	required := map[string][]string{
		"sql/000001_catalog.up.sql": {
			"CREATE TABLE log_table",
			"PRIMARY KEY (database_name, table_name)",
			"CHECK (format IN ('json', 'parquet'))",
			"CREATE INDEX idx_log_table_location",
		},
		"sql/000002_transform_run.up.sql": {
			"CREATE TABLE transform_run",
			"CREATE INDEX idx_transform_run_started_at_desc",
		},
	}

	for file, snippets := range required {
		body, err := embeddedFS.ReadFile(file)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", file, err)
		}
		for _, snippet := range snippets {
			if !strings.Contains(string(body), snippet) {
				t.Fatalf("%s missing required snippet: %s", file, snippet)
			}
		}
	}
}
