package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/flowkit/auth"
	"github.com/kbukum/flowkit/credentials"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/runstore"
	"github.com/kbukum/flowkit/server/middleware"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/task/localrunner"
)

// Deps are the collaborators behind the endpoints. Tasks and Credentials
// are optional; their routes are not registered when nil.
type Deps struct {
	Orchestrator *flow.Orchestrator
	Runs         runstore.Store
	Hub          *sse.Hub
	Tasks        *localrunner.Runner
	Credentials  credentials.Store
	Logger       *logger.Logger
}

// Handler serves the workflow API.
type Handler struct {
	Deps
	config Config
	log    *logger.Logger

	executeLimiter *resilience.KeyedLimiter
	taskLimiter    *resilience.KeyedLimiter
}

// New creates a Handler.
func New(deps Deps, cfg Config) *Handler {
	cfg.RateLimit.ApplyDefaults()
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("api")

	onLimit := func(name, key string) {
		log.Warn("Rate limit exceeded", logger.Fields("limiter", name, "client_ip", key))
	}
	return &Handler{
		Deps:   deps,
		config: cfg,
		log:    log,
		executeLimiter: resilience.NewKeyedLimiter(resilience.RateLimiterConfig{
			Name:    "execute",
			Limit:   cfg.RateLimit.ExecuteLimit,
			Window:  cfg.RateLimit.ExecuteWindow,
			OnLimit: onLimit,
		}),
		taskLimiter: resilience.NewKeyedLimiter(resilience.RateLimiterConfig{
			Name:    "tasks",
			Limit:   cfg.RateLimit.TaskLimit,
			Window:  cfg.RateLimit.TaskWindow,
			OnLimit: onLimit,
		}),
	}
}

// Register mounts the routes under /api. A nil validator runs every
// request as auth.Anonymous.
func (h *Handler) Register(r gin.IRouter, validator auth.TokenValidator) {
	api := r.Group("/api", middleware.Auth(validator))

	api.POST("/execute", middleware.RateLimit(h.executeLimiter, middleware.IPKey), h.Execute)
	api.GET("/execute/:runId", h.GetRun)
	api.GET("/execute/:runId/events", h.Events)
	api.GET("/runs", h.ListRuns)

	if h.Tasks != nil {
		api.POST("/tasks/:kind", middleware.RateLimit(h.taskLimiter, middleware.CallerKeyFunc), h.TriggerTask)
		api.GET("/tasks/runs/:id", h.GetTaskRun)
	}
	if h.Credentials != nil {
		api.PUT("/settings/credentials/:provider", h.PutCredential)
		api.DELETE("/settings/credentials/:provider", h.DeleteCredential)
	}
}
