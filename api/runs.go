package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/server"
	"github.com/kbukum/flowkit/server/middleware"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/validation"
	"github.com/kbukum/flowkit/workflow"
)

// snapshotFrame is the first event of a run stream.
type snapshotFrame struct {
	Type string               `json:"type"`
	Run  workflow.RunResponse `json:"run"`
}

// Execute runs the posted graph. The response carries every node result.
// With ?async=true it answers 202 with the pending run as soon as the run
// is stored; progress is then available from the events stream.
func (h *Handler) Execute(c *gin.Context) {
	var req workflow.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.Validation("invalid request body").WithCause(err))
		return
	}
	if err := validation.Validate(&req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	freq := flow.Request{
		WorkflowRef: req.WorkflowID,
		OwnerID:     middleware.Caller(c),
		Graph:       req.Graph(),
	}
	ctx := c.Request.Context()

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		run, err := h.Orchestrator.Start(ctx, freq)
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, workflow.NewRunResponse(run))
		return
	}

	run, err := h.Orchestrator.Execute(ctx, freq)
	if err != nil {
		if run != nil {
			h.log.WithContext(ctx).Error("Run finished with orchestration error", logger.Fields(
				logger.FieldRunID, run.ID,
				logger.FieldError, err.Error(),
			))
		}
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflow.NewRunResponse(run))
}

// GetRun returns a run owned by the caller.
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.ownedRun(c, c.Param("runId"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflow.NewRunResponse(run))
}

// ListRuns returns the caller's most recent runs, newest first.
func (h *Handler) ListRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			server.RespondWithError(c, errors.InvalidInput("limit", "must be between 1 and 200"))
			return
		}
		limit = n
	}
	runs, err := h.Runs.List(c.Request.Context(), middleware.Caller(c), limit)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	out := make([]workflow.RunResponse, len(runs))
	for i, r := range runs {
		out[i] = workflow.NewRunResponse(r)
	}
	server.RespondOK(c, out)
}

// Events streams a run's node transitions. The stream opens with the
// run's current state and closes after run.finished, or right after the
// snapshot when the run has already finished.
func (h *Handler) Events(c *gin.Context) {
	runID := c.Param("runId")
	if _, err := h.ownedRun(c, runID); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if h.Hub == nil {
		server.RespondWithError(c, errors.ServiceUnavailable("event stream"))
		return
	}

	finished := false
	opts := sse.StreamOptions{
		Logger: h.log,
		Snapshot: func() ([]byte, error) {
			run, err := h.Runs.Get(c.Request.Context(), runID)
			if err != nil {
				return nil, err
			}
			finished = run.Status != workflow.RunRunning
			return json.Marshal(snapshotFrame{Type: sse.EventTypeSnapshot, Run: workflow.NewRunResponse(run)})
		},
		Done: func(eventType string, _ []byte) bool {
			if eventType == sse.EventTypeSnapshot {
				return finished
			}
			return eventType == flow.EventRunFinished
		},
	}
	clientID := flow.RunClientID(runID, ulid.Make().String())
	sse.ServeSSE(h.Hub, c.Writer, c.Request, clientID, opts, sse.WithUserID(middleware.Caller(c)))
}

func (h *Handler) ownedRun(c *gin.Context, runID string) (*workflow.Run, error) {
	run, err := h.Runs.Get(c.Request.Context(), runID)
	if err != nil {
		return nil, err
	}
	if run.OwnerID != middleware.Caller(c) {
		return nil, errors.Forbidden("run belongs to another user")
	}
	return run, nil
}
