package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/server"
	"github.com/kbukum/flowkit/server/middleware"
	"github.com/kbukum/flowkit/task"
	"github.com/kbukum/flowkit/task/httprunner"
)

// TriggerTask submits a task to the local runner and answers 202 with its
// run id.
func (h *Handler) TriggerTask(c *gin.Context) {
	kind, err := task.ParseKind(c.Param("kind"))
	if err != nil {
		server.RespondWithError(c, errors.InvalidInput("kind", err.Error()))
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		server.RespondWithError(c, errors.Validation("invalid request body").WithCause(err))
		return
	}
	payload, err := task.DecodePayload(kind, raw)
	if err != nil {
		server.RespondWithError(c, errors.Validation(err.Error()))
		return
	}

	res := h.Tasks.Submit(c.Request.Context(), task.Request{CallerID: h.taskCaller(c), Payload: payload})
	if res.Err != nil {
		server.RespondWithError(c, res.Err)
		return
	}
	server.RespondAccepted(c, gin.H{"runId": res.RunID})
}

// GetTaskRun reports a task's status, output and error.
func (h *Handler) GetTaskRun(c *gin.Context) {
	id := c.Param("id")
	rec, ok := h.Tasks.Get(id)
	if !ok || (!h.trustedPeer(c) && rec.CallerID != middleware.Caller(c)) {
		server.RespondWithError(c, errors.NotFound("task run", id))
		return
	}
	server.RespondOK(c, rec.PollResult())
}

// taskCaller is the authenticated caller, or the X-Caller-ID a trusted
// peer submits on behalf of.
func (h *Handler) taskCaller(c *gin.Context) string {
	if h.trustedPeer(c) {
		if id := c.GetHeader(httprunner.CallerHeader); id != "" {
			return id
		}
	}
	return middleware.Caller(c)
}

func (h *Handler) trustedPeer(c *gin.Context) bool {
	return h.config.ServiceSubject != "" && middleware.Caller(c) == h.config.ServiceSubject
}
