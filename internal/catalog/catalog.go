package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loglens/loglens/internal/storage"
)

var ErrNotFound = errors.New("catalog: not found")

type Format string

const (
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatJSON, FormatParquet:
		return Format(raw), nil
	default:
		return "", fmt.Errorf("unsupported table format %q", raw)
	}
}

// Table is a queryable dataset: every object under Location belongs to it.
type Table struct {
	Database  string
	Name      string
	Location  string
	Format    Format
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t Table) Validate() error {
	if err := storage.ValidateName(t.Database, "database"); err != nil {
		return err
	}
	if err := storage.ValidateName(t.Name, "table name"); err != nil {
		return err
	}
	if _, err := storage.ParseURI(t.Location); err != nil {
		return err
	}
	if _, err := ParseFormat(string(t.Format)); err != nil {
		return err
	}
	return nil
}

// TransformRun records one pass of the raw-log transform.
type TransformRun struct {
	RunID        int64
	InputPrefix  string
	OutputPrefix string
	Objects      int
	Lines        int64
	Records      int64
	Dropped      int64
	Failed       int
	StartedAt    time.Time
	FinishedAt   time.Time
}

type Repository interface {
	HealthCheck(ctx context.Context) error
	UpsertTable(ctx context.Context, table Table) (Table, error)
	GetTable(ctx context.Context, database, name string) (Table, error)
	ListTables(ctx context.Context, database string) ([]Table, error)
	DeleteTable(ctx context.Context, database, name string) (bool, error)
	RecordTransformRun(ctx context.Context, run TransformRun) (TransformRun, error)
}
