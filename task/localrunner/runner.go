// Package localrunner runs tasks asynchronously inside the process.
//
// It is the task runner served by the HTTP API and can also be handed
// directly to a task.Invoker. Tasks are queued as QUEUED, move to
// EXECUTING once a concurrency slot is free, and end COMPLETED or
// FAILED. Finished records are kept for RecordTTL so clients can poll
// them.
package localrunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kbukum/flowkit/component"
	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/task"
)

var errNotRunning = errors.New("local task runner is not running")

// Config configures the local runner.
type Config struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// MaxWait fails a queued task that finds no free slot in time. Zero
	// queues until the runner stops.
	MaxWait   time.Duration `mapstructure:"max_wait"`
	RecordTTL time.Duration `mapstructure:"record_ttl"`
}

// ApplyDefaults sets 8 concurrent tasks and a one hour record TTL.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 8
	}
	if c.RecordTTL <= 0 {
		c.RecordTTL = time.Hour
	}
}

// Record is the state of one submitted task.
type Record struct {
	ID         string          `json:"id"`
	Kind       task.Kind       `json:"kind"`
	CallerID   string          `json:"callerId,omitempty"`
	Status     task.RunStatus  `json:"status"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// PollResult projects the record into the runner protocol shape.
func (r Record) PollResult() task.PollResult {
	return task.PollResult{Status: r.Status, Output: r.Output, Error: r.Error}
}

// Runner is an in-process task.Runner.
type Runner struct {
	exec     task.ExecFunc
	config   Config
	bulkhead *resilience.Bulkhead
	log      *logger.Logger

	// Now overrides the clock used for record timestamps.
	Now func() time.Time

	mu      sync.Mutex
	records map[string]*Record
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ component.Component = (*Runner)(nil)

// New creates a stopped runner that executes tasks with exec.
func New(exec task.ExecFunc, cfg Config, log *logger.Logger) *Runner {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("localrunner")
	return &Runner{
		exec:   exec,
		config: cfg,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "local-tasks",
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.MaxWait,
			OnReject: func(name string) {
				log.Warn("no free task slot", logger.Fields("bulkhead", name, "max_wait", cfg.MaxWait.String()))
			},
		}),
		log:     log,
		records: make(map[string]*Record),
	}
}

// Name implements component.Component.
func (r *Runner) Name() string { return "task-runner" }

// Start accepts submissions until Stop. Tasks run with a context
// derived from ctx with its cancellation removed.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.baseCtx != nil {
		return nil
	}
	r.baseCtx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.log.Info("local task runner started", logger.Fields("max_concurrent", r.config.MaxConcurrent, "max_wait", r.config.MaxWait.String()))
	return nil
}

// Stop rejects new submissions and waits for running tasks until ctx is
// done, then cancels whatever is left.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.baseCtx, r.cancel = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		cancel()
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// InUse returns the number of tasks executing now.
func (r *Runner) InUse() int { return r.bulkhead.InUse() }

// Health implements component.Component.
func (r *Runner) Health(context.Context) component.Health {
	r.mu.Lock()
	running := r.baseCtx != nil
	r.mu.Unlock()
	if !running {
		return component.Health{Name: r.Name(), Status: component.StatusUnhealthy, Message: "stopped"}
	}
	inUse, slots := r.bulkhead.InUse(), r.bulkhead.MaxConcurrent()
	status := component.StatusHealthy
	if inUse >= slots {
		status = component.StatusDegraded
	}
	return component.Health{
		Name:    r.Name(),
		Status:  status,
		Message: fmt.Sprintf("%d/%d slots in use", inUse, slots),
	}
}

// Submit implements task.Runner.
func (r *Runner) Submit(_ context.Context, req task.Request) task.SubmitResult {
	r.mu.Lock()
	base := r.baseCtx
	if base == nil {
		r.mu.Unlock()
		return task.SubmitResult{Err: apperrors.TaskSubmission(string(req.Kind()), errNotRunning)}
	}
	now := r.now()
	r.evictLocked(now)
	rec := &Record{
		ID:        ulid.Make().String(),
		Kind:      req.Kind(),
		CallerID:  req.CallerID,
		Status:    task.StatusQueued,
		CreatedAt: now,
	}
	r.records[rec.ID] = rec
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(base, rec.ID, req)
	return task.SubmitResult{RunID: rec.ID}
}

// Poll implements task.Runner.
func (r *Runner) Poll(_ context.Context, runID string) (task.PollResult, error) {
	rec, ok := r.Get(runID)
	if !ok {
		return task.PollResult{}, apperrors.NotFound("task run", runID)
	}
	return rec.PollResult(), nil
}

// Get returns a copy of the record for runID.
func (r *Runner) Get(runID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[runID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

func (r *Runner) run(ctx context.Context, id string, req task.Request) {
	defer r.wg.Done()
	log := r.log.WithFields(logger.Fields(logger.FieldTaskRunID, id, logger.FieldTaskKind, string(req.Kind())))

	out, err := resilience.ExecuteWithResult(r.bulkhead, ctx, func() (json.RawMessage, error) {
		r.update(id, func(rec *Record) { rec.Status = task.StatusExecuting })
		return r.safeExec(ctx, req)
	})
	if errors.Is(err, resilience.ErrBulkheadTimeout) {
		err = apperrors.ServiceUnavailable("task runner").WithCause(err)
	}

	finished := r.now()
	r.update(id, func(rec *Record) {
		rec.FinishedAt = &finished
		if err != nil {
			rec.Status = task.StatusFailed
			rec.Error = errorMessage(err)
			return
		}
		rec.Status = task.StatusCompleted
		rec.Output = out
	})
	if err != nil {
		log.Warn("task failed", logger.ErrorFields("execute", err))
		return
	}
	log.Debug("task completed")
}

func (r *Runner) safeExec(ctx context.Context, req task.Request) (out json.RawMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return r.exec(ctx, req)
}

func (r *Runner) update(id string, fn func(*Record)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		fn(rec)
	}
}

// evictLocked drops finished records older than RecordTTL. Caller holds mu.
func (r *Runner) evictLocked(now time.Time) {
	for id, rec := range r.records {
		if rec.FinishedAt != nil && now.Sub(*rec.FinishedAt) > r.config.RecordTTL {
			delete(r.records, id)
		}
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// errorMessage keeps the user-facing message of application errors.
func errorMessage(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
