package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const migrationTable = "loglens_schema_migrations"

var migrationNamePattern = regexp.MustCompile(`^([0-9]+)_(.+)\.(up|down)\.sql$`)

type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

func NewRunnerWithFS(fsys fs.FS) *Runner {
	return &Runner{fsys: fsys}
}

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

type Status struct {
	Version   int64
	Name      string
	AppliedAt *time.Time
}

// Up applies pending migrations in version order. steps <= 0 applies all.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	migrations, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, item := range migrations {
		if _, ok := applied[item.Version]; ok {
			continue
		}
		if steps > 0 && count >= steps {
			break
		}
		mark := `INSERT INTO ` + migrationTable + ` (version) VALUES ($1)`
		if err := execInTx(ctx, db, item.UpSQL, mark, item.Version); err != nil {
			return count, fmt.Errorf("apply migration %d (%s): %w", item.Version, item.Name, err)
		}
		count++
	}
	return count, nil
}

// Down rolls back the most recently applied migrations; steps <= 0 means one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	migrations, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}

	lookup := make(map[int64]migration, len(migrations))
	for _, item := range migrations {
		lookup[item.Version] = item
	}
	versions := make([]int64, 0, len(applied))
	for version := range applied {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })

	count := 0
	for _, version := range versions {
		if count >= steps {
			break
		}
		item, ok := lookup[version]
		if !ok {
			return count, fmt.Errorf("applied migration %d is missing from source", version)
		}
		unmark := `DELETE FROM ` + migrationTable + ` WHERE version = $1`
		if err := execInTx(ctx, db, item.DownSQL, unmark, item.Version); err != nil {
			return count, fmt.Errorf("roll back migration %d (%s): %w", item.Version, item.Name, err)
		}
		count++
	}
	return count, nil
}

// Status lists every known migration with its applied time, if any.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	migrations, applied, err := r.prepare(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(migrations))
	for _, item := range migrations {
		status := Status{Version: item.Version, Name: item.Name}
		if at, ok := applied[item.Version]; ok {
			appliedAt := at
			status.AppliedAt = &appliedAt
		}
		out = append(out, status)
	}
	return out, nil
}

func (r *Runner) prepare(ctx context.Context, db *sql.DB) ([]migration, map[int64]time.Time, error) {
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return nil, nil, err
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+migrationTable+` (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return nil, nil, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := listApplied(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	return migrations, applied, nil
}

func execInTx(ctx context.Context, db *sql.DB, script, bookkeeping string, version int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, version); err != nil {
		return fmt.Errorf("update %s: %w", migrationTable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func listApplied(ctx context.Context, db *sql.DB) (map[int64]time.Time, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, applied_at FROM `+migrationTable)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := map[int64]time.Time{}
	for rows.Next() {
		var version int64
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan applied version: %w", err)
		}
		applied[version] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied versions: %w", err)
	}
	return applied, nil
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	items := map[int64]migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationNamePattern.FindStringSubmatch(path.Base(entry.Name()))
		if matches == nil {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", entry.Name(), err)
		}
		script, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		item := items[version]
		if item.Name != "" && item.Name != matches[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, item.Name, matches[2])
		}
		item.Version = version
		item.Name = matches[2]
		if matches[3] == "up" {
			item.UpSQL = string(script)
		} else {
			item.DownSQL = string(script)
		}
		items[version] = item
	}

	migrations := make([]migration, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", item.Version)
		}
		if strings.TrimSpace(item.DownSQL) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", item.Version)
		}
		migrations = append(migrations, item)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
