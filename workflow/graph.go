package workflow

import (
	"fmt"

	"github.com/kbukum/flowkit/errors"
)

// Input handle names.
const (
	HandleDefault = "input"

	HandleSystemPrompt = "system_prompt"
	HandleUserMessage  = "user_message"
	HandleImages       = "images"

	HandleImageURL      = "image_url"
	HandleXPercent      = "x_percent"
	HandleYPercent      = "y_percent"
	HandleWidthPercent  = "width_percent"
	HandleHeightPercent = "height_percent"

	HandleVideoURL  = "video_url"
	HandleTimestamp = "timestamp"
)

// Edge connects an upstream node's output to a downstream input handle.
type Edge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Handle returns the input key this edge writes, defaulting to "input".
func (e Edge) Handle() string {
	if e.TargetHandle == "" {
		return HandleDefault
	}
	return e.TargetHandle
}

// Graph is the node/edge snapshot submitted for execution.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MergesHandle reports whether several edges may feed the same handle of
// a node of type t. Only the llm images handle collects a list.
func MergesHandle(t NodeType, handle string) bool {
	return t == TypeLLM && handle == HandleImages
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Incoming returns the edges targeting id, in edge-array order.
func (g *Graph) Incoming(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// CheckStructure verifies node ids are unique, edges reference existing
// nodes, and single-valued handles have at most one incoming edge.
// Acyclicity is checked separately by the dag package.
func (g *Graph) CheckStructure() error {
	types := make(map[string]NodeType, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := types[n.ID]; dup {
			return errors.InvalidGraph(fmt.Sprintf("Duplicate node id %q", n.ID)).WithDetail("node_id", n.ID)
		}
		types[n.ID] = n.Type
	}

	seen := make(map[[2]string]bool)
	for _, e := range g.Edges {
		if _, ok := types[e.Source]; !ok {
			return errors.InvalidGraph(fmt.Sprintf("Edge references unknown node %q", e.Source)).WithDetail("node_id", e.Source)
		}
		targetType, ok := types[e.Target]
		if !ok {
			return errors.InvalidGraph(fmt.Sprintf("Edge references unknown node %q", e.Target)).WithDetail("node_id", e.Target)
		}
		key := [2]string{e.Target, e.Handle()}
		if seen[key] && !MergesHandle(targetType, e.Handle()) {
			return errors.InvalidGraph(fmt.Sprintf("Handle %q of node %q has more than one incoming edge", e.Handle(), e.Target)).
				WithDetails(map[string]any{"node_id": e.Target, "handle": e.Handle()})
		}
		seen[key] = true
	}
	return nil
}
