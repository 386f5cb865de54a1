package main

import (
	"context"
	"fmt"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/credentials"
	"github.com/kbukum/flowkit/database"
	"github.com/kbukum/flowkit/encryption"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/llm"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/media"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/ops"
	"github.com/kbukum/flowkit/redis"
	"github.com/kbukum/flowkit/runstore"
	"github.com/kbukum/flowkit/security"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/task"
	"github.com/kbukum/flowkit/task/httprunner"
	"github.com/kbukum/flowkit/task/localrunner"
)

// infra holds the connection components a service starts before
// anything that depends on them.
type infra struct {
	db    *database.Component
	redis *redis.Component
}

func newInfra(cfg *Config, log *logger.Logger) infra {
	var in infra
	if cfg.usesDatabase() {
		in.db = database.NewComponent(cfg.Database, log)
	}
	if cfg.Redis.Enabled {
		in.redis = redis.NewComponent(cfg.Redis, log)
	}
	return in
}

func (in infra) components() []component.Component {
	var out []component.Component
	if in.db != nil {
		out = append(out, in.db)
	}
	if in.redis != nil {
		out = append(out, in.redis)
	}
	return out
}

// services is the engine assembled from a started infra.
type services struct {
	runs         runstore.Store
	creds        *credentials.Resolver
	executor     *ops.Executor
	local        *localrunner.Runner
	orchestrator *flow.Orchestrator
}

func newRunStore(cfg *Config, in infra) (runstore.Store, error) {
	backend, err := runstore.ParseBackend(cfg.Store.Backend)
	if err != nil {
		return nil, err
	}
	switch backend {
	case runstore.BackendSQL:
		return runstore.NewSQLStore(in.db.DB()), nil
	case runstore.BackendRedis:
		return runstore.NewRedisStore(in.redis.Client(), cfg.Store.Redis), nil
	}
	return runstore.NewMemoryStore(), nil
}

func newCredentialStore(cfg *Config, in infra) (credentials.Store, error) {
	if !cfg.Credentials.Persisted() {
		return credentials.NewMemoryStore(), nil
	}
	sealer, err := encryption.New(cfg.Credentials.Encryption)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	return credentials.NewSQLStore(in.db.DB(), sealer), nil
}

// buildServices wires stores, operations, the task path and the
// orchestrator. events may be nil.
func buildServices(cfg *Config, in infra, events sse.Broadcaster, metrics *observability.Metrics, log *logger.Logger) (*services, error) {
	runs, err := newRunStore(cfg, in)
	if err != nil {
		return nil, err
	}
	credStore, err := newCredentialStore(cfg, in)
	if err != nil {
		return nil, err
	}
	creds := credentials.NewResolver(credStore, cfg.Credentials.Defaults, log)

	mediaClient, err := media.New(cfg.Media, log)
	if err != nil {
		return nil, fmt.Errorf("media: %w", err)
	}
	models := llm.NewRouter(llm.NewGemini(cfg.LLM.Gemini), llm.NewOpenAI(cfg.LLM.OpenAI))
	guard := security.NewURLGuard(cfg.Security)
	executor, err := ops.NewExecutor(cfg.Ops, models, mediaClient, creds, guard, log)
	if err != nil {
		return nil, fmt.Errorf("ops: %w", err)
	}

	local := localrunner.New(executor.Execute, cfg.Tasks.Local, log)

	var runner task.Runner = local
	if cfg.Tasks.Remote.BaseURL != "" {
		remote, err := httprunner.New(cfg.Tasks.Remote, log)
		if err != nil {
			return nil, err
		}
		runner = remote
	}
	var inline task.ExecFunc
	if cfg.Tasks.Inline {
		inline = executor.Execute
	}
	invoker := task.NewInvoker(runner, inline, cfg.Tasks.Config,
		task.WithLogger(log),
		task.WithMetrics(metrics),
	)

	opts := []flow.Option{flow.WithLogger(log), flow.WithMetrics(metrics)}
	if events != nil {
		opts = append(opts, flow.WithEvents(events))
	}
	return &services{
		runs:         runs,
		creds:        creds,
		executor:     executor,
		local:        local,
		orchestrator: flow.NewOrchestrator(runs, flow.NewDispatcher(invoker), cfg.Engine, opts...),
	}, nil
}

// setupObservability installs the OpenTelemetry providers and returns the
// workflow metrics, nil when export is disabled.
func setupObservability(ctx context.Context, cfg *Config, log *logger.Logger) (*observability.Metrics, func(context.Context) error, error) {
	shutdown, err := observability.Setup(ctx, cfg.Observability, cfg.Name, cfg.Version, log)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Observability.Enabled {
		return nil, shutdown, nil
	}
	metrics, err := observability.NewMetrics(observability.Meter())
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, err
	}
	return metrics, shutdown, nil
}
