package workflow

// ExecuteRequest is the body of an execute call.
type ExecuteRequest struct {
	WorkflowID string `json:"workflowId,omitempty"`
	Nodes      []Node `json:"nodes" validate:"required,min=1,dive"`
	Edges      []Edge `json:"edges" validate:"required,dive"`
}

// Graph returns the request's node/edge snapshot.
func (r *ExecuteRequest) Graph() *Graph {
	return &Graph{Nodes: r.Nodes, Edges: r.Edges}
}

// RunResponse is returned by execute and poll calls.
type RunResponse struct {
	RunID       string                `json:"runId"`
	Status      RunStatus             `json:"status"`
	NodeResults map[string]NodeResult `json:"nodeResults"`
}

// NewRunResponse projects a run into its response shape.
func NewRunResponse(r *Run) RunResponse {
	return RunResponse{RunID: r.ID, Status: r.Status, NodeResults: r.NodeResults}
}
