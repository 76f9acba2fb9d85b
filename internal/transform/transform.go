// Package transform turns raw log objects into the structured tables the
// query services read: one NDJSON part (and optionally one Parquet part) per
// input object, registered in the catalog.
package transform

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loglens/loglens/internal/catalog"
	"github.com/loglens/loglens/internal/logparse"
	"github.com/loglens/loglens/internal/observability"
	"github.com/loglens/loglens/internal/storage"
)

type Catalog interface {
	UpsertTable(ctx context.Context, table catalog.Table) (catalog.Table, error)
	RecordTransformRun(ctx context.Context, run catalog.TransformRun) (catalog.TransformRun, error)
}

type Config struct {
	Namespace    storage.Namespace
	Database     string
	InputPrefix  string
	OutputPrefix string
	JSONTable    string
	ParquetTable string
	WriteParquet bool
	Workers      int
}

type ObjectSummary struct {
	InputKey   string
	Lines      int64
	Records    int64
	Dropped    int64
	JSONKey    string
	ParquetKey string
}

type Summary struct {
	Objects    []ObjectSummary
	Lines      int64
	Records    int64
	Dropped    int64
	StartedAt  time.Time
	FinishedAt time.Time
}

type Job struct {
	store   storage.ObjectStore
	catalog Catalog
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
}

func NewJob(store storage.ObjectStore, cat Catalog, cfg Config, logger *slog.Logger) (*Job, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if err := storage.ValidateName(cfg.Database, "database"); err != nil {
		return nil, err
	}
	if err := storage.ValidateName(cfg.JSONTable, "json table"); err != nil {
		return nil, err
	}
	if cfg.WriteParquet {
		if err := storage.ValidateName(cfg.ParquetTable, "parquet table"); err != nil {
			return nil, err
		}
	}
	cfg.InputPrefix = storage.DirPrefix(cfg.InputPrefix)
	cfg.OutputPrefix = storage.DirPrefix(cfg.OutputPrefix)
	if cfg.InputPrefix == "" || cfg.OutputPrefix == "" {
		return nil, fmt.Errorf("input and output prefixes are required")
	}
	if prefixesOverlap(cfg.InputPrefix, cfg.OutputPrefix) {
		return nil, fmt.Errorf("input prefix %q and output prefix %q overlap", cfg.InputPrefix, cfg.OutputPrefix)
	}
	if cfg.WriteParquet {
		parquet := storage.DirPrefix(cfg.ParquetTable)
		for _, other := range []string{cfg.InputPrefix, cfg.OutputPrefix} {
			if prefixesOverlap(parquet, other) {
				return nil, fmt.Errorf("parquet prefix %q overlaps %q", parquet, other)
			}
		}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Job{store: store, catalog: cat, cfg: cfg, log: logger, now: time.Now}, nil
}

// prefixesOverlap reports whether either directory prefix contains the other.
// Stale part pruning deletes foreign objects under an output prefix.
func prefixesOverlap(a, b string) bool {
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

func (j *Job) parquetPrefix() string {
	return storage.DirPrefix(j.cfg.ParquetTable)
}

// Run transforms every object under the input prefix. Output parts left over
// from an earlier run with more inputs are removed so the output prefix only
// holds the current result.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	summary := Summary{StartedAt: j.now().UTC()}

	inputs, err := j.store.List(ctx, j.cfg.InputPrefix)
	if err != nil {
		return summary, fmt.Errorf("list raw logs: %w", err)
	}
	j.log.InfoContext(ctx, "transform started", slog.String("input_prefix", j.cfg.InputPrefix), slog.Int("objects", len(inputs)))

	results := make([]ObjectSummary, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.cfg.Workers)
	for i := range inputs {
		sequence, input := i, inputs[i]
		g.Go(func() error {
			result, err := j.transformObject(gctx, sequence, input.Key)
			observability.ObserveTransformObject(err == nil)
			if err != nil {
				return fmt.Errorf("transform %s: %w", input.Key, err)
			}
			results[sequence] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	for _, result := range results {
		summary.Objects = append(summary.Objects, result)
		summary.Lines += result.Lines
		summary.Records += result.Records
		summary.Dropped += result.Dropped
	}

	if err := j.pruneStaleParts(ctx, j.cfg.OutputPrefix, len(inputs)); err != nil {
		return summary, err
	}
	if j.cfg.WriteParquet {
		if err := j.pruneStaleParts(ctx, j.parquetPrefix(), len(inputs)); err != nil {
			return summary, err
		}
	}
	if err := j.register(ctx); err != nil {
		return summary, err
	}

	summary.FinishedAt = j.now().UTC()
	if _, err := j.catalog.RecordTransformRun(ctx, catalog.TransformRun{
		InputPrefix:  j.cfg.InputPrefix,
		OutputPrefix: j.cfg.OutputPrefix,
		Objects:      len(summary.Objects),
		Lines:        summary.Lines,
		Records:      summary.Records,
		Dropped:      summary.Dropped,
		StartedAt:    summary.StartedAt,
		FinishedAt:   summary.FinishedAt,
	}); err != nil {
		return summary, err
	}

	j.log.InfoContext(ctx, "transform completed",
		slog.Int("objects", len(summary.Objects)),
		slog.Int64("lines", summary.Lines),
		slog.Int64("records", summary.Records),
		slog.Int64("dropped", summary.Dropped),
	)
	return summary, nil
}

func (j *Job) transformObject(ctx context.Context, sequence int, key string) (ObjectSummary, error) {
	reader, err := j.store.Get(ctx, key)
	if err != nil {
		return ObjectSummary{}, err
	}
	defer func() { _ = reader.Close() }()

	parser := logparse.NewParser()
	parser.OnDrop = func(index int, line string) {
		if strings.TrimSpace(line) != "" {
			j.log.DebugContext(ctx, "dropped unparseable line", slog.String("object", key), slog.Int("line", index))
		}
	}

	var jsonBuf bytes.Buffer
	encoder := logparse.NewEncoder(&jsonBuf)
	var records []logparse.Record
	if err := parser.Scan(reader, func(item logparse.Indexed) error {
		if j.cfg.WriteParquet {
			records = append(records, item.Record)
		}
		return encoder.Encode(item.Record)
	}); err != nil {
		return ObjectSummary{}, err
	}

	stats := parser.Stats()
	result := ObjectSummary{
		InputKey: key,
		Lines:    stats.Accepted + stats.Dropped,
		Records:  stats.Accepted,
		Dropped:  stats.Dropped,
	}

	result.JSONKey, err = storage.PartKey(j.cfg.OutputPrefix, sequence, "json")
	if err != nil {
		return ObjectSummary{}, err
	}
	if _, err := j.store.Put(ctx, result.JSONKey, &jsonBuf, int64(jsonBuf.Len()), storage.PutOptions{ContentType: storage.ContentTypeNDJSON}); err != nil {
		return ObjectSummary{}, err
	}

	if j.cfg.WriteParquet {
		data, err := EncodeParquet(records)
		if err != nil {
			return ObjectSummary{}, err
		}
		result.ParquetKey, err = storage.PartKey(j.parquetPrefix(), sequence, "parquet")
		if err != nil {
			return ObjectSummary{}, err
		}
		if _, err := j.store.Put(ctx, result.ParquetKey, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: storage.ContentTypeParquet}); err != nil {
			return ObjectSummary{}, err
		}
	}
	return result, nil
}

func (j *Job) pruneStaleParts(ctx context.Context, prefix string, keep int) error {
	existing, err := j.store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list output parts: %w", err)
	}
	current := make(map[string]struct{}, keep)
	for i := 0; i < keep; i++ {
		for _, ext := range []string{"json", "parquet"} {
			key, err := storage.PartKey(prefix, i, ext)
			if err != nil {
				return err
			}
			current[key] = struct{}{}
		}
	}
	for _, object := range existing {
		if _, ok := current[object.Key]; ok {
			continue
		}
		if err := j.store.Delete(ctx, object.Key); err != nil {
			return fmt.Errorf("remove stale part %s: %w", object.Key, err)
		}
		j.log.DebugContext(ctx, "removed stale output part", slog.String("key", object.Key))
	}
	return nil
}

func (j *Job) register(ctx context.Context) error {
	tables := []catalog.Table{{
		Database: j.cfg.Database,
		Name:     j.cfg.JSONTable,
		Location: j.cfg.Namespace.URI(j.cfg.OutputPrefix).String(),
		Format:   catalog.FormatJSON,
	}}
	if j.cfg.WriteParquet {
		tables = append(tables, catalog.Table{
			Database: j.cfg.Database,
			Name:     j.cfg.ParquetTable,
			Location: j.cfg.Namespace.URI(j.parquetPrefix()).String(),
			Format:   catalog.FormatParquet,
		})
	}
	for _, table := range tables {
		if _, err := j.catalog.UpsertTable(ctx, table); err != nil {
			return fmt.Errorf("register table %s: %w", table.Name, err)
		}
	}
	return nil
}
