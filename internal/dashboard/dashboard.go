package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/loglens/loglens/internal/aggregate"
	"github.com/loglens/loglens/internal/logparse"
	"github.com/loglens/loglens/internal/query"
	"github.com/loglens/loglens/internal/storage"
)

const groupColumn = "id"

type Executor interface {
	Execute(ctx context.Context, request query.Request) (query.ResultSet, error)
}

type Pie struct {
	Level   logparse.Level     `json:"level"`
	Query   string             `json:"query"`
	Series  aggregate.Series   `json:"series"`
	Total   int64              `json:"total"`
	Buckets []aggregate.Bucket `json:"buckets"`
}

type Severity struct {
	Errors   Pie `json:"errors"`
	Warnings Pie `json:"warnings"`
}

type Dashboard struct {
	executor Executor
	database string
	table    string
}

func New(executor Executor, database, table string) (*Dashboard, error) {
	if executor == nil {
		return nil, fmt.Errorf("query executor is required")
	}
	if err := storage.ValidateName(database, "database"); err != nil {
		return nil, err
	}
	if err := storage.ValidateName(table, "table"); err != nil {
		return nil, err
	}
	return &Dashboard{executor: executor, database: database, table: table}, nil
}

// Severity runs the ERROR and WARNING count queries concurrently and returns
// one pie per level, grouped by message id.
func (d *Dashboard) Severity(ctx context.Context) (Severity, error) {
	var out Severity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pie, err := d.pie(gctx, logparse.LevelError)
		out.Errors = pie
		return err
	})
	g.Go(func() error {
		pie, err := d.pie(gctx, logparse.LevelWarning)
		out.Warnings = pie
		return err
	})
	if err := g.Wait(); err != nil {
		return Severity{}, err
	}
	return out, nil
}

func (d *Dashboard) pie(ctx context.Context, level logparse.Level) (Pie, error) {
	statement := SeverityQuery(d.database, d.table, level)
	result, err := d.executor.Execute(ctx, query.Request{SQL: statement, Database: d.database})
	if err != nil {
		return Pie{}, fmt.Errorf("%s counts: %w", level, err)
	}
	buckets, err := aggregate.Aggregate(result, groupColumn)
	if err != nil {
		return Pie{}, fmt.Errorf("%s counts: %w", level, err)
	}
	series := aggregate.NewSeries(buckets)
	return Pie{Level: level, Query: statement, Series: series, Total: series.Total(), Buckets: buckets}, nil
}

func SeverityQuery(database, table string, level logparse.Level) string {
	return fmt.Sprintf(`SELECT id, COUNT(*) as count FROM "%s"."%s" WHERE level='%s' GROUP BY id`, database, table, level)
}

// DefaultQuery is the statement offered when a table is picked for browsing.
func DefaultQuery(database, table string) string {
	return fmt.Sprintf(`SELECT * FROM "%s"."%s" LIMIT 10;`, database, table)
}
