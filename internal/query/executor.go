package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loglens/loglens/internal/observability"
)

const (
	defaultPollInterval  = time.Second
	defaultCancelTimeout = 5 * time.Second
)

type Request struct {
	SQL            string
	Database       string
	OutputLocation string
}

type ExecutorConfig struct {
	// Database and OutputLocation are used when a Request leaves them empty.
	Database       string
	OutputLocation string
	PollInterval   time.Duration
	// Timeout bounds a single execution; zero waits for a terminal state.
	Timeout time.Duration
	// CancelTimeout bounds the best-effort remote cancel issued when an
	// execution is interrupted locally.
	CancelTimeout time.Duration
}

// Executor drives one remote job per call through submit, poll and fetch.
// It holds no per-execution state and may be shared between goroutines.
type Executor struct {
	service Service
	cfg     ExecutorConfig
	log     *slog.Logger
}

func NewExecutor(service Service, cfg ExecutorConfig, logger *slog.Logger) (*Executor, error) {
	if service == nil {
		return nil, fmt.Errorf("query service is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.CancelTimeout <= 0 {
		cfg.CancelTimeout = defaultCancelTimeout
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0")
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Executor{service: service, cfg: cfg, log: logger}, nil
}

func (e *Executor) Execute(ctx context.Context, request Request) (ResultSet, error) {
	_, result, err := e.Run(ctx, request)
	return result, err
}

// Run is Execute that also returns the job as last observed, which is useful
// to callers reporting job ids and poll counts.
func (e *Executor) Run(ctx context.Context, request Request) (Job, ResultSet, error) {
	if request.Database == "" {
		request.Database = e.cfg.Database
	}
	if request.OutputLocation == "" {
		request.OutputLocation = e.cfg.OutputLocation
	}

	if err := CheckStatement(request.SQL); err != nil {
		observability.ObserveQueryOutcome("rejected", 0)
		e.log.WarnContext(ctx, "rejected forbidden statement", slog.Any("error", err))
		return Job{SQL: request.SQL, Database: request.Database, OutputLocation: request.OutputLocation}, ResultSet{}, err
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	job := Job{
		SQL:            request.SQL,
		Database:       request.Database,
		OutputLocation: request.OutputLocation,
		SubmittedAt:    time.Now(),
	}
	result, err := e.run(ctx, &job)
	elapsed := time.Since(job.SubmittedAt)
	outcome := outcomeOf(err)
	observability.ObserveQueryOutcome(outcome, elapsed)

	if err != nil {
		e.log.WarnContext(ctx, "query did not succeed",
			slog.String("job_id", job.ID),
			slog.String("outcome", outcome),
			slog.Int("polls", job.Polls),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		return job, ResultSet{}, err
	}
	e.log.InfoContext(ctx, "query succeeded",
		slog.String("job_id", job.ID),
		slog.Int("polls", job.Polls),
		slog.Int("rows", len(result.Rows)),
		slog.Duration("elapsed", elapsed),
	)
	return job, result, nil
}

func (e *Executor) run(ctx context.Context, job *Job) (ResultSet, error) {
	jobID, err := e.service.Submit(ctx, Submission{
		SQL:            job.SQL,
		Database:       job.Database,
		OutputLocation: job.OutputLocation,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ResultSet{}, e.interrupted(ctx, job)
		}
		return ResultSet{}, &ServiceError{Op: "submit", Err: err}
	}
	job.ID = jobID
	job.State = StateSubmitted
	e.log.DebugContext(ctx, "query submitted", slog.String("job_id", jobID), slog.String("database", job.Database))

	if err := e.wait(ctx, job); err != nil {
		return ResultSet{}, err
	}

	raw, err := e.service.Results(ctx, job.ID)
	if err != nil {
		if ctx.Err() != nil {
			return ResultSet{}, e.interrupted(ctx, job)
		}
		return ResultSet{}, &ServiceError{Op: "fetch results of", JobID: job.ID, Err: err}
	}
	return newResultSet(raw), nil
}

func (e *Executor) wait(ctx context.Context, job *Job) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		status, err := e.service.Status(ctx, job.ID)
		job.Polls++
		observability.IncrementQueryPolls()
		if err != nil {
			if ctx.Err() != nil {
				return e.interrupted(ctx, job)
			}
			return &ServiceError{Op: "poll", JobID: job.ID, Err: err}
		}
		job.State = status.State
		job.Reason = status.Reason

		switch status.State {
		case StateSucceeded:
			return nil
		case StateFailed, StateCancelled:
			return &JobError{JobID: job.ID, State: status.State, Reason: status.Reason}
		}

		if timer == nil {
			timer = time.NewTimer(e.cfg.PollInterval)
		} else {
			timer.Reset(e.cfg.PollInterval)
		}
		select {
		case <-ctx.Done():
			return e.interrupted(ctx, job)
		case <-timer.C:
		}
	}
}

// interrupted converts a done context into the typed error and, when a
// non-terminal job exists, asks the service to stop it.
func (e *Executor) interrupted(ctx context.Context, job *Job) error {
	if job.ID != "" && !job.State.Terminal() {
		cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CancelTimeout)
		if err := e.service.Cancel(cancelCtx, job.ID); err != nil {
			e.log.WarnContext(ctx, "best-effort cancel failed", slog.String("job_id", job.ID), slog.Any("error", err))
		}
		cancel()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{JobID: job.ID, LastState: job.State, Elapsed: time.Since(job.SubmittedAt)}
	}
	return &AbortedError{JobID: job.ID, Cause: ctx.Err()}
}

// newResultSet splits off the header row and makes every row as wide as the
// header, with absent cells as empty strings.
func newResultSet(raw RawResult) ResultSet {
	if len(raw.Rows) == 0 {
		return ResultSet{Headers: []string{}, Rows: [][]string{}}
	}
	headers := normalizeRow(raw.Rows[0], len(raw.Rows[0]))
	rows := make([][]string, 0, len(raw.Rows)-1)
	for _, row := range raw.Rows[1:] {
		rows = append(rows, normalizeRow(row, len(headers)))
	}
	return ResultSet{Headers: headers, Rows: rows}
}

func normalizeRow(row []*string, width int) []string {
	out := make([]string, width)
	for i := 0; i < width && i < len(row); i++ {
		if row[i] != nil {
			out[i] = *row[i]
		}
	}
	return out
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, ErrQueryFailed):
		return "failed"
	case errors.Is(err, ErrQueryCancelled):
		return "cancelled"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrAborted):
		return "aborted"
	default:
		return "error"
	}
}
