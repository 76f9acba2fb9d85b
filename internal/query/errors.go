package query

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRejectedStatement = errors.New("query: statement rejected")
	ErrQueryFailed       = errors.New("query: job failed")
	ErrQueryCancelled    = errors.New("query: job cancelled")
	ErrTimeout           = errors.New("query: timed out waiting for job")
	ErrAborted           = errors.New("query: aborted by caller")
)

type RejectedStatementError struct {
	Statement string
	Keyword   string
}

func (e *RejectedStatementError) Error() string {
	return fmt.Sprintf("forbidden SQL query detected (%s): %s", e.Keyword, e.Statement)
}

func (e *RejectedStatementError) Is(target error) bool {
	return target == ErrRejectedStatement
}

// JobError reports a job that reached FAILED or CANCELLED on the remote side.
type JobError struct {
	JobID  string
	State  State
	Reason string
}

func (e *JobError) Error() string {
	verb := "failed"
	if e.State == StateCancelled {
		verb = "was cancelled"
	}
	if e.Reason == "" {
		return fmt.Sprintf("query %s %s", e.JobID, verb)
	}
	return fmt.Sprintf("query %s %s: %s", e.JobID, verb, e.Reason)
}

func (e *JobError) Is(target error) bool {
	switch target {
	case ErrQueryFailed:
		return e.State == StateFailed
	case ErrQueryCancelled:
		return e.State == StateCancelled
	default:
		return false
	}
}

type TimeoutError struct {
	JobID     string
	LastState State
	Elapsed   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("query %s still %s after %s", e.JobID, e.LastState, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

type AbortedError struct {
	JobID string
	Cause error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("query %s aborted: %v", e.JobID, e.Cause)
}

func (e *AbortedError) Is(target error) bool {
	return target == ErrAborted
}

func (e *AbortedError) Unwrap() error {
	return e.Cause
}

// ServiceError wraps a failed call to the remote service itself (as opposed
// to a job that the service reports as failed).
type ServiceError struct {
	Op    string
	JobID string
	Err   error
}

var ErrService = errors.New("query: remote service call failed")

func (e *ServiceError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("%s query: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s query %s: %v", e.Op, e.JobID, e.Err)
}

func (e *ServiceError) Is(target error) bool {
	return target == ErrService
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
