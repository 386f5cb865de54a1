package flow

import (
	"encoding/json"
	"time"

	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/workflow"
)

// Run event types streamed to subscribers.
const (
	EventNodeRunning   = "node.running"
	EventNodeCompleted = "node.completed"
	EventNodeFailed    = "node.failed"
	EventRunFinished   = "run.finished"
)

// Event is one run progress notification.
type Event struct {
	Type       string               `json:"type"`
	RunID      string               `json:"runId"`
	NodeResult *workflow.NodeResult `json:"nodeResult,omitempty"`
	Status     workflow.RunStatus   `json:"status,omitempty"`
	At         time.Time            `json:"at"`
}

// RunClientID names an event-stream subscriber of runID.
func RunClientID(runID, connID string) string {
	return "run:" + runID + ":" + connID
}

// RunPattern matches every subscriber of runID.
func RunPattern(runID string) string {
	return "run:" + runID + ":*"
}

func nodeEventType(s workflow.NodeStatus) string {
	switch s {
	case workflow.NodeCompleted:
		return EventNodeCompleted
	case workflow.NodeFailed:
		return EventNodeFailed
	}
	return EventNodeRunning
}

func publish(b sse.Broadcaster, ev Event) {
	if b == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	b.BroadcastToPattern(RunPattern(ev.RunID), data)
}
