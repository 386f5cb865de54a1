// Package httprunner submits tasks to a remote task runner over HTTP.
//
// The runner contract is:
//
//	POST /api/tasks/{kind}          body = payload    -> 202 {"data":{"runId":"..."}}
//	GET  /api/tasks/runs/{runId}                      -> {"data":{"status":"...","output":...,"error":"..."}}
//
// Requests carry the service token as a bearer credential and the
// caller id in the X-Caller-ID header.
package httprunner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/httpclient"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/task"
)

// CallerHeader carries the caller on whose behalf a task runs.
const CallerHeader = "X-Caller-ID"

// Config configures the remote runner client.
type Config struct {
	BaseURL      string        `mapstructure:"base_url"`
	ServiceToken string        `mapstructure:"service_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Runner implements task.Runner against a remote HTTP runner.
type Runner struct {
	client *httpclient.Client
	log    *logger.Logger
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type submitData struct {
	RunID string `json:"runId"`
}

// New creates a runner client with retry and a circuit breaker.
func New(cfg Config, log *logger.Logger) (*Runner, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("httprunner: base_url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := httpclient.Config{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		Retry:          httpclient.DefaultRetryConfig(),
		CircuitBreaker: httpclient.DefaultCircuitBreakerConfig("task-runner"),
	}
	if cfg.ServiceToken != "" {
		hc.Auth = httpclient.BearerAuth(cfg.ServiceToken)
	}
	client, err := httpclient.New(hc)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{client: client, log: log.WithComponent("httprunner")}, nil
}

// Submit implements task.Runner. Transport failures, 5xx after retries
// and an open circuit are reported as TASK_SUBMISSION_FAILED, the only
// error that lets the invoker fall back to inline execution. A 4xx answer
// means the runner was reached and refused: 401/403 become
// EXTERNAL_SERVICE_ERROR, 429 (once retries are spent) RATE_LIMITED, and
// anything else a validation error carrying the runner's message.
func (r *Runner) Submit(ctx context.Context, req task.Request) task.SubmitResult {
	kind := string(req.Kind())
	resp, err := httpclient.PostJSON[envelope[submitData]](r.client, ctx, "/api/tasks/"+url.PathEscape(kind), req.Payload,
		httpclient.WithHeader(CallerHeader, req.CallerID))
	if err != nil {
		return task.SubmitResult{Err: classify(ctx, kind, err)}
	}
	if resp.Data.RunID == "" {
		return task.SubmitResult{Err: apperrors.TaskSubmission(kind, errors.New("runner returned no run id"))}
	}
	r.log.Debug("task submitted to runner", logger.Fields(logger.FieldTaskKind, kind, logger.FieldTaskRunID, resp.Data.RunID))
	return task.SubmitResult{RunID: resp.Data.RunID}
}

// Poll implements task.Runner.
func (r *Runner) Poll(ctx context.Context, runID string) (task.PollResult, error) {
	resp, err := httpclient.GetJSON[envelope[task.PollResult]](r.client, ctx, "/api/tasks/runs/"+url.PathEscape(runID))
	if err != nil {
		return task.PollResult{}, fmt.Errorf("poll %s: %w", runID, err)
	}
	return resp.Data, nil
}

func classify(ctx context.Context, kind string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var herr *httpclient.Error
	if errors.As(err, &herr) && herr.StatusCode >= 400 && herr.StatusCode < 500 {
		switch herr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.ExternalServiceError("task runner", err).WithDetail("status", herr.StatusCode)
		case http.StatusTooManyRequests:
			return apperrors.RateLimited().WithDetail("service", "task runner").WithCause(err)
		}
		return apperrors.Validation(herr.Detail()).WithCause(err)
	}
	if httpclient.IsConnection(err) {
		return apperrors.TaskSubmission(kind, apperrors.ConnectionFailed("task runner").WithCause(err))
	}
	return apperrors.TaskSubmission(kind, err)
}
