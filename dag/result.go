package dag

import "time"

// Status is the terminal state of a node execution.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result holds the outcome of a graph execution.
type Result struct {
	Levels      [][]string
	NodeResults map[string]NodeResult
	// Halted is set when a node failed and later levels were not started.
	Halted   bool
	Duration time.Duration
}

// Failed reports whether any node failed.
func (r *Result) Failed() bool {
	for _, nr := range r.NodeResults {
		if nr.Status == StatusFailed {
			return true
		}
	}
	return false
}

// NodeResult holds the outcome of a single node execution.
type NodeResult struct {
	Name        string
	Status      Status
	StartedAt   time.Time
	CompletedAt time.Time
	Output      any
	Error       error
}

// Duration is the node's wall time.
func (nr NodeResult) Duration() time.Duration {
	return nr.CompletedAt.Sub(nr.StartedAt)
}
