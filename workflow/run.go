package workflow

import (
	"encoding/json"
	"maps"
	"time"
)

// NodeStatus is the lifecycle state of one node within a run.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
)

// Terminal reports whether no further transition can happen.
func (s NodeStatus) Terminal() bool {
	return s == NodeCompleted || s == NodeFailed
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run scopes.
const (
	ScopeFull      = "full"
	InlineWorkflow = "inline"
)

// NodeResult records the outcome of one node.
type NodeResult struct {
	NodeID      string     `json:"nodeId"`
	NodeType    NodeType   `json:"nodeType"`
	Status      NodeStatus `json:"status"`
	Output      Output     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// UnmarshalJSON restores the typed output using the node type.
func (r *NodeResult) UnmarshalJSON(b []byte) error {
	type alias NodeResult
	var raw struct {
		alias
		Output json.RawMessage `json:"output,omitempty"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out, err := DecodeOutput(raw.NodeType, raw.Output)
	if err != nil {
		return err
	}
	*r = NodeResult(raw.alias)
	r.Output = out
	return nil
}

// Run is one execution of a graph.
type Run struct {
	ID              string                `json:"id"`
	WorkflowRef     string                `json:"workflowId"`
	OwnerID         string                `json:"ownerId,omitempty"`
	Scope           string                `json:"scope"`
	Status          RunStatus             `json:"status"`
	NodeResults     map[string]NodeResult `json:"nodeResults"`
	StartedAt       time.Time             `json:"startedAt"`
	CompletedAt     *time.Time            `json:"completedAt,omitempty"`
	DurationSeconds *int64                `json:"durationSeconds,omitempty"`
}

// NewRun creates a running run with every node pending.
func NewRun(ref, owner string, nodes []Node, startedAt time.Time) *Run {
	if ref == "" {
		ref = InlineWorkflow
	}
	results := make(map[string]NodeResult, len(nodes))
	for _, n := range nodes {
		results[n.ID] = NodeResult{NodeID: n.ID, NodeType: n.Type, Status: NodePending}
	}
	return &Run{
		WorkflowRef: ref,
		OwnerID:     owner,
		Scope:       ScopeFull,
		Status:      RunRunning,
		NodeResults: results,
		StartedAt:   startedAt,
	}
}

// Finish sets the terminal status and duration. The run fails when any
// node failed.
func (r *Run) Finish(at time.Time) {
	r.Status = RunCompleted
	for _, nr := range r.NodeResults {
		if nr.Status == NodeFailed {
			r.Status = RunFailed
			break
		}
	}
	secs := int64(at.Sub(r.StartedAt) / time.Second)
	r.CompletedAt = &at
	r.DurationSeconds = &secs
}

// Clone returns a copy whose result map can be read without holding the
// owner's lock.
func (r *Run) Clone() *Run {
	c := *r
	c.NodeResults = maps.Clone(r.NodeResults)
	return &c
}

// RunUpdate carries the fields changed by one store update. Nil fields
// are left untouched; NodeResults entries replace existing entries by id.
type RunUpdate struct {
	Status          *RunStatus            `json:"status,omitempty"`
	NodeResults     map[string]NodeResult `json:"nodeResults,omitempty"`
	CompletedAt     *time.Time            `json:"completedAt,omitempty"`
	DurationSeconds *int64                `json:"durationSeconds,omitempty"`
}

// NodeUpdate builds an update for a single node result.
func NodeUpdate(nr NodeResult) RunUpdate {
	return RunUpdate{NodeResults: map[string]NodeResult{nr.NodeID: nr}}
}

// FinalUpdate builds the update that closes a finished run.
func FinalUpdate(r *Run) RunUpdate {
	status := r.Status
	return RunUpdate{
		Status:          &status,
		NodeResults:     maps.Clone(r.NodeResults),
		CompletedAt:     r.CompletedAt,
		DurationSeconds: r.DurationSeconds,
	}
}

// Apply merges the update into r.
func (u RunUpdate) Apply(r *Run) {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if r.NodeResults == nil && len(u.NodeResults) > 0 {
		r.NodeResults = make(map[string]NodeResult, len(u.NodeResults))
	}
	maps.Copy(r.NodeResults, u.NodeResults)
	if u.CompletedAt != nil {
		r.CompletedAt = u.CompletedAt
	}
	if u.DurationSeconds != nil {
		r.DurationSeconds = u.DurationSeconds
	}
}
