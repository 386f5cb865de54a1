package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
)

// Config controls polling.
type Config struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	LLMMaxAttempts   int           `mapstructure:"llm_max_attempts"`
	MediaMaxAttempts int           `mapstructure:"media_max_attempts"`
}

// ApplyDefaults sets a 1s interval and ceilings of 180 (llm) and 120 (media).
func (c *Config) ApplyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.LLMMaxAttempts <= 0 {
		c.LLMMaxAttempts = 180
	}
	if c.MediaMaxAttempts <= 0 {
		c.MediaMaxAttempts = 120
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.PollInterval < 10*time.Millisecond {
		return fmt.Errorf("tasks: poll_interval must be at least 10ms, got %s", c.PollInterval)
	}
	return nil
}

// MaxAttempts returns the poll ceiling for kind.
func (c *Config) MaxAttempts(kind Kind) int {
	if kind.Media() {
		return c.MediaMaxAttempts
	}
	return c.LLMMaxAttempts
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithClock replaces the system clock.
func WithClock(c Clock) Option { return func(i *Invoker) { i.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(i *Invoker) { i.log = l } }

// WithMetrics records task outcomes and fallbacks.
func WithMetrics(m *observability.Metrics) Option { return func(i *Invoker) { i.metrics = m } }

// Invoker runs tasks through a Runner, falling back to inline execution
// when the runner is unreachable.
type Invoker struct {
	runner  Runner
	inline  ExecFunc
	config  Config
	clock   Clock
	log     *logger.Logger
	metrics *observability.Metrics
}

// NewInvoker creates an invoker. inline may be nil, in which case an
// unreachable runner fails the task.
func NewInvoker(runner Runner, inline ExecFunc, cfg Config, opts ...Option) *Invoker {
	cfg.ApplyDefaults()
	if runner == nil {
		runner = NoRunner{}
	}
	i := &Invoker{runner: runner, inline: inline, config: cfg, clock: SystemClock{}}
	for _, opt := range opts {
		opt(i)
	}
	if i.log == nil {
		i.log = logger.NewNop()
	}
	i.log = i.log.WithComponent("task")
	return i
}

// Invoke runs the task to completion and returns its JSON output.
func (i *Invoker) Invoke(ctx context.Context, req Request) (out json.RawMessage, err error) {
	kind := req.Kind()
	log := i.log.WithFields(logger.Fields(logger.FieldTaskKind, string(kind)))
	ctx, span := observability.StartSpan(ctx, observability.SpanTask, attribute.String(observability.AttrTaskKind, string(kind)))
	defer func() { observability.EndSpan(span, err) }()

	sub := i.runner.Submit(ctx, req)
	switch {
	case sub.Unreachable():
		if i.inline == nil {
			return nil, sub.Err
		}
		log.Warn("task runner unreachable, running inline", logger.ErrorFields("submit", sub.Err))
		i.metrics.RecordFallback(ctx, string(kind))
		out, err = i.inline(ctx, req)
		i.metrics.RecordTask(ctx, string(kind), outcome("inline", err), 0)
		return out, err
	case sub.Err != nil:
		i.metrics.RecordTask(ctx, string(kind), "rejected", 0)
		return nil, sub.Err
	}

	log.Debug("task submitted", logger.Fields(logger.FieldTaskRunID, sub.RunID))
	out, attempts, err := i.poll(ctx, kind, sub.RunID, log)
	span.SetAttributes(attribute.Int(observability.AttrAttempts, attempts))
	i.metrics.RecordTask(ctx, string(kind), outcome("polled", err), attempts)
	return out, err
}

// poll waits one interval before each poll and stops at the attempt
// ceiling. Poll errors count as attempts.
func (i *Invoker) poll(ctx context.Context, kind Kind, runID string, log *logger.Logger) (json.RawMessage, int, error) {
	limit := i.config.MaxAttempts(kind)
	ticker := i.clock.NewTicker(i.config.PollInterval)
	defer ticker.Stop()

	for attempts := 1; attempts <= limit; attempts++ {
		select {
		case <-ctx.Done():
			return nil, attempts - 1, ctx.Err()
		case <-ticker.C():
		}

		res, err := i.runner.Poll(ctx, runID)
		if err != nil {
			log.Debug("task poll failed", logger.Fields(logger.FieldTaskRunID, runID, logger.FieldAttempt, attempts, logger.FieldError, err.Error()))
			continue
		}
		switch {
		case res.IsCompleted():
			return res.Output, attempts, nil
		case res.IsFailed():
			msg := res.Error
			if msg == "" {
				msg = "Task failed"
			}
			return nil, attempts, errors.New(msg)
		}
	}
	log.Warn("task poll ceiling reached", logger.Fields(logger.FieldTaskRunID, runID, logger.FieldAttempt, limit))
	return nil, limit, apperrors.TaskTimeout(string(kind), limit)
}

func outcome(path string, err error) string {
	if err != nil {
		return path + "_failed"
	}
	return path + "_completed"
}
