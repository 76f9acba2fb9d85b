package duckdb

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loglens/loglens/internal/catalog"
	"github.com/loglens/loglens/internal/observability"
	"github.com/loglens/loglens/internal/query"
	"github.com/loglens/loglens/internal/storage"
)

var ErrJobNotFound = errors.New("duckdb: job not found")

const defaultRetainedJobs = 500

type TableLister interface {
	ListTables(ctx context.Context, database string) ([]catalog.Table, error)
}

type Config struct {
	Namespace storage.Namespace
	WorkDir   string
	MaxBytes  int64
	// RetainedJobs caps how many finished jobs stay queryable.
	RetainedJobs int
}

// Service is an in-process implementation of query.Service. Each submitted
// statement runs in its own goroutine against the tables the catalog lists
// for the submission's database.
type Service struct {
	engine  *Engine
	tables  TableLister
	store   storage.ObjectStore
	ns      storage.Namespace
	retain  int
	log     *slog.Logger
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	state    query.State
	reason   string
	result   query.RawResult
	cancel   context.CancelFunc
	finished time.Time
}

func NewService(store storage.ObjectStore, tables TableLister, cfg Config, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if tables == nil {
		return nil, fmt.Errorf("table catalog is required")
	}
	if strings.TrimSpace(cfg.Namespace.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if cfg.RetainedJobs <= 0 {
		cfg.RetainedJobs = defaultRetainedJobs
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	baseCtx, stop := context.WithCancel(context.Background())
	return &Service{
		engine:  NewEngine(store, cfg.WorkDir, cfg.MaxBytes),
		tables:  tables,
		store:   store,
		ns:      cfg.Namespace,
		retain:  cfg.RetainedJobs,
		log:     logger,
		baseCtx: baseCtx,
		stop:    stop,
		jobs:    map[string]*job{},
	}, nil
}

func (s *Service) Submit(_ context.Context, submission query.Submission) (string, error) {
	if err := storage.ValidateName(submission.Database, "database"); err != nil {
		return "", err
	}
	outputURI, err := storage.ParseURI(submission.OutputLocation)
	if err != nil {
		return "", fmt.Errorf("output location: %w", err)
	}
	outputKey, err := s.ns.Key(outputURI)
	if err != nil {
		return "", fmt.Errorf("output location: %w", err)
	}
	if strings.TrimSpace(submission.SQL) == "" {
		return "", fmt.Errorf("sql is required")
	}

	jobID := uuid.NewString()
	jobCtx, cancel := context.WithCancel(s.baseCtx)

	s.mu.Lock()
	s.pruneLocked()
	s.jobs[jobID] = &job{state: query.StateQueued, cancel: cancel}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(jobCtx, jobID, submission, outputKey)
	}()
	return jobID, nil
}

func (s *Service) Status(_ context.Context, jobID string) (query.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return query.Status{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return query.Status{State: j.state, Reason: j.reason}, nil
}

func (s *Service) Results(_ context.Context, jobID string) (query.RawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return query.RawResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if j.state != query.StateSucceeded {
		return query.RawResult{}, fmt.Errorf("job %s is %s, results are not available", jobID, j.state)
	}
	return j.result, nil
}

func (s *Service) Cancel(_ context.Context, jobID string) error {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if s.finish(jobID, query.StateCancelled, "cancelled by caller", query.RawResult{}) {
		j.cancel()
		s.log.Info("query job cancelled", slog.String("job_id", jobID))
	}
	return nil
}

// Close cancels running jobs and waits for their goroutines to exit.
func (s *Service) Close() {
	s.stop()
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context, jobID string, submission query.Submission, outputKey string) {
	if !s.transition(jobID, query.StateQueued, query.StateRunning) {
		return
	}
	start := time.Now()

	result, err := s.execute(ctx, submission)
	if err == nil {
		err = s.materialize(ctx, jobID, outputKey, result)
	}
	if err != nil {
		if ctx.Err() != nil {
			s.finish(jobID, query.StateCancelled, "query was cancelled", query.RawResult{})
			return
		}
		if s.finish(jobID, query.StateFailed, err.Error(), query.RawResult{}) {
			s.log.Warn("query job failed", slog.String("job_id", jobID), slog.Any("error", err))
		}
		return
	}
	if s.finish(jobID, query.StateSucceeded, "", result) {
		s.log.Info("query job succeeded",
			slog.String("job_id", jobID),
			slog.Int("rows", len(result.Rows)-1),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

func (s *Service) execute(ctx context.Context, submission query.Submission) (query.RawResult, error) {
	tables, err := s.tables.ListTables(ctx, submission.Database)
	if err != nil {
		return query.RawResult{}, fmt.Errorf("list tables of %s: %w", submission.Database, err)
	}
	sources := make([]TableSource, 0, len(tables))
	for _, table := range referencedTables(submission.SQL, tables) {
		source, err := s.resolve(ctx, table)
		if err != nil {
			return query.RawResult{}, err
		}
		sources = append(sources, source)
	}
	return s.engine.Run(ctx, submission.Database, sources, submission.SQL)
}

func (s *Service) resolve(ctx context.Context, table catalog.Table) (TableSource, error) {
	uri, err := storage.ParseURI(table.Location)
	if err != nil {
		return TableSource{}, fmt.Errorf("table %s: %w", table.Name, err)
	}
	prefix, err := s.ns.Key(uri)
	if err != nil {
		return TableSource{}, fmt.Errorf("table %s: %w", table.Name, err)
	}
	objects, err := s.store.List(ctx, storage.DirPrefix(prefix))
	if err != nil {
		return TableSource{}, fmt.Errorf("list objects of table %s: %w", table.Name, err)
	}
	ext := "." + string(table.Format)
	source := TableSource{Name: table.Name, Format: table.Format}
	for _, object := range objects {
		if strings.HasSuffix(object.Key, ext) && object.Size > 0 {
			source.Objects = append(source.Objects, object)
		}
	}
	return source, nil
}

func (s *Service) materialize(ctx context.Context, jobID, outputPrefix string, result query.RawResult) error {
	key, err := storage.ResultKey(outputPrefix, jobID)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	for _, row := range result.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			if cell != nil {
				record[i] = *cell
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("encode result csv: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("encode result csv: %w", err)
	}
	if _, err := s.store.Put(ctx, key, &buf, int64(buf.Len()), storage.PutOptions{ContentType: storage.ContentTypeCSV}); err != nil {
		return fmt.Errorf("write query result: %w", err)
	}
	return nil
}

func (s *Service) transition(jobID string, from, to query.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.state != from {
		return false
	}
	j.state = to
	return true
}

// finish moves a job to a terminal state once; later calls are no-ops.
func (s *Service) finish(jobID string, state query.State, reason string, result query.RawResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.state.Terminal() {
		return false
	}
	j.state = state
	j.reason = reason
	j.result = result
	j.finished = time.Now()
	return true
}

func (s *Service) pruneLocked() {
	if len(s.jobs) < s.retain {
		return
	}
	type finishedJob struct {
		id string
		at time.Time
	}
	finished := make([]finishedJob, 0, len(s.jobs))
	for id, j := range s.jobs {
		if j.state.Terminal() {
			finished = append(finished, finishedJob{id: id, at: j.finished})
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].at.Before(finished[j].at) })
	for _, item := range finished {
		if len(s.jobs) < s.retain {
			return
		}
		delete(s.jobs, item.id)
	}
}

// referencedTables keeps the tables whose name occurs in the statement so
// that unrelated datasets are not downloaded.
func referencedTables(statement string, tables []catalog.Table) []catalog.Table {
	lowered := strings.ToLower(statement)
	out := make([]catalog.Table, 0, len(tables))
	for _, table := range tables {
		if strings.Contains(lowered, strings.ToLower(table.Name)) {
			out = append(out, table)
		}
	}
	return out
}
