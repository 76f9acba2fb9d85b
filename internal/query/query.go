package query

import (
	"context"
	"time"
)

type State string

const (
	StateSubmitted State = "SUBMITTED"
	StateQueued    State = "QUEUED"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether no further transitions can follow s. Unknown
// states reported by a service are treated as still running.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

type Submission struct {
	SQL            string
	Database       string
	OutputLocation string
}

type Status struct {
	State  State
	Reason string
}

// RawResult is the tabular payload as returned by a service. The first row
// repeats the column names; nil cells are absent values.
type RawResult struct {
	Rows [][]*string
}

// Service is a remote asynchronous query engine. Implementations must be safe
// for concurrent use and keep no per-caller session state.
type Service interface {
	Submit(ctx context.Context, submission Submission) (string, error)
	Status(ctx context.Context, jobID string) (Status, error)
	Results(ctx context.Context, jobID string) (RawResult, error)
	Cancel(ctx context.Context, jobID string) error
}

// Job tracks one remote execution inside a single Execute call.
type Job struct {
	ID             string
	SQL            string
	Database       string
	OutputLocation string
	State          State
	Reason         string
	SubmittedAt    time.Time
	Polls          int
}

type ResultSet struct {
	Headers []string
	Rows    [][]string
}

func (r ResultSet) ColumnIndex(name string) int {
	for i, header := range r.Headers {
		if header == name {
			return i
		}
	}
	return -1
}
