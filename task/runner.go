package task

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "github.com/kbukum/flowkit/errors"
)

// RunStatus is the status reported by a runner for a submitted task.
type RunStatus string

const (
	StatusQueued    RunStatus = "QUEUED"
	StatusExecuting RunStatus = "EXECUTING"
	StatusCompleted RunStatus = "COMPLETED"
	StatusFailed    RunStatus = "FAILED"
	StatusCanceled  RunStatus = "CANCELED"
)

// SubmitResult is the outcome of a submission: a run id, or the error
// that prevented the runner from accepting the task. Errors with code
// TASK_SUBMISSION_FAILED mean the runner is unreachable.
type SubmitResult struct {
	RunID string
	Err   error
}

// Unreachable reports whether the runner could not be reached at all.
func (r SubmitResult) Unreachable() bool {
	return r.Err != nil && apperrors.IsCode(r.Err, apperrors.ErrCodeTaskSubmission)
}

// PollResult is a runner's view of one submitted task.
type PollResult struct {
	Status RunStatus       `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// IsCompleted reports a successful terminal state.
func (p PollResult) IsCompleted() bool { return p.Status == StatusCompleted }

// IsFailed reports a failed or canceled terminal state.
func (p PollResult) IsFailed() bool {
	return p.Status == StatusFailed || p.Status == StatusCanceled
}

// Runner accepts tasks and reports their progress.
type Runner interface {
	Submit(ctx context.Context, req Request) SubmitResult
	Poll(ctx context.Context, runID string) (PollResult, error)
}

// ExecFunc performs a task synchronously and returns its JSON output.
type ExecFunc func(ctx context.Context, req Request) (json.RawMessage, error)

var errNoRunner = errors.New("no task runner configured")

// NoRunner rejects every submission as unreachable, so invokers always
// run tasks inline.
type NoRunner struct{}

// Submit implements Runner.
func (NoRunner) Submit(_ context.Context, req Request) SubmitResult {
	return SubmitResult{Err: apperrors.TaskSubmission(string(req.Kind()), errNoRunner)}
}

// Poll implements Runner.
func (NoRunner) Poll(context.Context, string) (PollResult, error) {
	return PollResult{}, errNoRunner
}
