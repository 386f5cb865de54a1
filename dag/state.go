package dag

import "sync"

// State collects node outputs while a graph runs. The engine writes a
// node's output after the node returns without error, so a node reading
// its dependencies from State sees every upstream output of earlier
// levels and nothing from its own level.
type State struct {
	mu      sync.RWMutex
	outputs map[string]any
}

func NewState() *State {
	return &State{outputs: make(map[string]any)}
}

// Get returns the output of a completed node.
func (s *State) Get(nodeID string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.outputs[nodeID]
	return out, ok
}

// Set records the output of nodeID.
func (s *State) Set(nodeID string, output any) {
	s.mu.Lock()
	s.outputs[nodeID] = output
	s.mu.Unlock()
}
