package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/loglens/loglens/internal/catalog"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping catalog db: %w", err)
	}
	return nil
}

func (r *Repository) UpsertTable(ctx context.Context, table catalog.Table) (catalog.Table, error) {
	if err := table.Validate(); err != nil {
		return catalog.Table{}, err
	}

	query := `
INSERT INTO log_table (database_name, table_name, location, format)
VALUES ($1, $2, $3, $4)
ON CONFLICT (database_name, table_name)
DO UPDATE SET location = EXCLUDED.location, format = EXCLUDED.format, updated_at = NOW()
RETURNING created_at, updated_at`
	if err := r.db.QueryRowContext(ctx, query, table.Database, table.Name, table.Location, string(table.Format)).
		Scan(&table.CreatedAt, &table.UpdatedAt); err != nil {
		return catalog.Table{}, fmt.Errorf("upsert table %s.%s: %w", table.Database, table.Name, err)
	}
	return table, nil
}

func (r *Repository) GetTable(ctx context.Context, database, name string) (catalog.Table, error) {
	query := `
SELECT database_name, table_name, location, format, created_at, updated_at
FROM log_table
WHERE database_name = $1 AND table_name = $2`

	table, err := scanTable(r.db.QueryRowContext(ctx, query, database, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Table{}, catalog.ErrNotFound
		}
		return catalog.Table{}, fmt.Errorf("get table %s.%s: %w", database, name, err)
	}
	return table, nil
}

func (r *Repository) ListTables(ctx context.Context, database string) ([]catalog.Table, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT database_name, table_name, location, format, created_at, updated_at
FROM log_table
WHERE database_name = $1
ORDER BY table_name ASC`, database)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]catalog.Table, 0)
	for rows.Next() {
		table, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}
	return tables, nil
}

func (r *Repository) DeleteTable(ctx context.Context, database, name string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM log_table WHERE database_name = $1 AND table_name = $2`, database, name)
	if err != nil {
		return false, fmt.Errorf("delete table %s.%s: %w", database, name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *Repository) RecordTransformRun(ctx context.Context, run catalog.TransformRun) (catalog.TransformRun, error) {
	query := `
INSERT INTO transform_run (input_prefix, output_prefix, objects, lines, records, dropped, failed, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING run_id`
	if err := r.db.QueryRowContext(ctx, query,
		run.InputPrefix,
		run.OutputPrefix,
		run.Objects,
		run.Lines,
		run.Records,
		run.Dropped,
		run.Failed,
		run.StartedAt,
		run.FinishedAt,
	).Scan(&run.RunID); err != nil {
		return catalog.TransformRun{}, fmt.Errorf("record transform run: %w", err)
	}
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTable(row rowScanner) (catalog.Table, error) {
	var table catalog.Table
	var format string
	if err := row.Scan(
		&table.Database,
		&table.Name,
		&table.Location,
		&format,
		&table.CreatedAt,
		&table.UpdatedAt,
	); err != nil {
		return catalog.Table{}, err
	}
	table.Format = catalog.Format(format)
	return table, nil
}
