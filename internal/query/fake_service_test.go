package query

import (
	"context"
	"errors"
	"sync"
)

type fakeService struct {
	mu sync.Mutex

	jobID       string
	submitErr   error
	statuses    []Status
	statusErr   error
	results     RawResult
	resultsErr  error
	blockStatus bool

	submissions []Submission
	statusCalls int
	resultCalls int
	cancelled   []string
}

func (f *fakeService) Submit(_ context.Context, submission Submission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, submission)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if f.jobID == "" {
		return "job-1", nil
	}
	return f.jobID, nil
}

func (f *fakeService) Status(ctx context.Context, _ string) (Status, error) {
	f.mu.Lock()
	f.statusCalls++
	call := f.statusCalls
	block := f.blockStatus
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return Status{}, ctx.Err()
	}
	if f.statusErr != nil {
		return Status{}, f.statusErr
	}
	if len(f.statuses) == 0 {
		return Status{State: StateRunning}, nil
	}
	if call > len(f.statuses) {
		return f.statuses[len(f.statuses)-1], nil
	}
	return f.statuses[call-1], nil
}

func (f *fakeService) Results(_ context.Context, _ string) (RawResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	if f.resultsErr != nil {
		return RawResult{}, f.resultsErr
	}
	return f.results, nil
}

func (f *fakeService) Cancel(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

func (f *fakeService) calls() (submits, statuses, results, cancels int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions), f.statusCalls, f.resultCalls, len(f.cancelled)
}

var errBoom = errors.New("boom")

func ptr(value string) *string {
	return &value
}
