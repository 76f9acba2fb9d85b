package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/loglens/loglens/internal/catalog"
	"github.com/loglens/loglens/internal/query"
	"github.com/loglens/loglens/internal/storage"
)

// TableSource is a catalog table resolved to the objects that hold its rows.
type TableSource struct {
	Name    string
	Format  catalog.Format
	Objects []storage.ObjectInfo
}

// Engine runs one statement against local copies of the table objects in a
// throwaway in-memory DuckDB database.
type Engine struct {
	store    storage.ObjectStore
	workDir  string
	maxBytes int64
}

func NewEngine(store storage.ObjectStore, workDir string, maxBytes int64) *Engine {
	return &Engine{store: store, workDir: workDir, maxBytes: maxBytes}
}

// Run exposes every source as a view "<database>"."<name>" and returns the
// stringified result with the column names as the first row.
func (e *Engine) Run(ctx context.Context, database string, sources []TableSource, statement string) (query.RawResult, error) {
	statement = stripTrailingSemicolons(statement)
	if statement == "" {
		return query.RawResult{}, fmt.Errorf("sql is required")
	}
	if e.store == nil {
		return query.RawResult{}, fmt.Errorf("object store is required")
	}

	workDir, err := os.MkdirTemp(e.workDir, "loglens-query-")
	if err != nil {
		return query.RawResult{}, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPaths, err := e.download(ctx, workDir, sources)
	if err != nil {
		return query.RawResult{}, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.RawResult{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()
	// Views and the session schema live on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+quoteIdent(database)); err != nil {
		return query.RawResult{}, fmt.Errorf("create schema %q: %w", database, err)
	}
	for _, source := range sources {
		paths := localPaths[source.Name]
		if len(paths) == 0 {
			continue
		}
		reader := "read_json_auto"
		if source.Format == catalog.FormatParquet {
			reader = "read_parquet"
		}
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s.%s AS SELECT * FROM %s(%s)`,
			quoteIdent(database), quoteIdent(source.Name), reader, quoteStringArray(paths))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			return query.RawResult{}, fmt.Errorf("create view %s.%s: %w", database, source.Name, err)
		}
	}
	if _, err := db.ExecContext(ctx, `SET schema = `+quoteLiteral(database)); err != nil {
		return query.RawResult{}, fmt.Errorf("set schema %q: %w", database, err)
	}

	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return query.RawResult{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.RawResult{}, fmt.Errorf("query columns: %w", err)
	}
	header := make([]*string, len(columns))
	for i := range columns {
		name := columns[i]
		header[i] = &name
	}
	result := query.RawResult{Rows: [][]*string{header}}

	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return query.RawResult{}, fmt.Errorf("scan row: %w", err)
		}
		result.Rows = append(result.Rows, stringifyRow(values))
	}
	if err := rows.Err(); err != nil {
		return query.RawResult{}, err
	}
	return result, nil
}

func (e *Engine) download(ctx context.Context, workDir string, sources []TableSource) (map[string][]string, error) {
	paths := map[string][]string{}
	var total int64
	for _, source := range sources {
		ext := ".json"
		if source.Format == catalog.FormatParquet {
			ext = ".parquet"
		}
		for index, object := range source.Objects {
			total += object.Size
			if e.maxBytes > 0 && total > e.maxBytes {
				return nil, fmt.Errorf("tables exceed the local scan limit of %d bytes", e.maxBytes)
			}
			localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d%s", sanitizeFileComponent(source.Name), index, ext))
			if err := e.fetch(ctx, object.Key, localPath); err != nil {
				return nil, err
			}
			paths[source.Name] = append(paths[source.Name], localPath)
		}
	}
	return paths, nil
}

func (e *Engine) fetch(ctx context.Context, key, localPath string) error {
	reader, err := e.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get object %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()
	if err := writeFile(localPath, reader); err != nil {
		return fmt.Errorf("write local copy of %q: %w", key, err)
	}
	return nil
}

func stringifyRow(values []any) []*string {
	out := make([]*string, len(values))
	for i, value := range values {
		if value == nil {
			continue
		}
		text := stringify(value)
		out[i] = &text
	}
	return out
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	case bool:
		return strconv.FormatBool(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case int32:
		return strconv.FormatInt(int64(typed), 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case *big.Int:
		return typed.String()
	case time.Time:
		if typed.Nanosecond() == 0 {
			return typed.UTC().Format(time.DateTime)
		}
		return typed.UTC().Format("2006-01-02 15:04:05.000")
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, quoteLiteral(value))
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.NewReplacer("/", "_", "..", "_", `\`, "_").Replace(value)
	if value == "" {
		return "table"
	}
	return value
}

func stripTrailingSemicolons(statement string) string {
	trimmed := strings.TrimSpace(statement)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
