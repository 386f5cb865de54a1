package dag

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when a graph is not acyclic.
var ErrCycle = errors.New("dag: cycle detected")

// Graph declares nodes and edges (dependency relationships). Node order is
// significant: it seeds the frontier, so levels list nodes in the order
// they were declared.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Edge represents a dependency: To depends on From.
type Edge struct {
	From string
	To   string
}

// Names returns node names in declaration order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		names[i] = n.Name()
	}
	return names
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.Name() == name {
			return n, true
		}
	}
	return nil, false
}

// IsAcyclic reports whether the nodes and edges form a DAG. Unknown edge
// endpoints make the graph invalid.
func IsAcyclic(names []string, edges []Edge) bool {
	_, err := Levels(names, edges)
	return err == nil
}

// BuildLevels groups the graph's nodes by dependency level.
func BuildLevels(g *Graph) ([][]string, error) {
	return Levels(g.Names(), g.Edges)
}

// Levels uses Kahn's algorithm to bucket names into rounds: level 0 is the
// initial zero in-degree frontier, level i+1 holds the nodes whose
// in-degree drops to zero once levels 0..i are removed. Within a level,
// names keep frontier insertion order. A node strictly inside a cycle never
// reaches zero in-degree, so a short count means a cycle.
func Levels(names []string, edges []Edge) ([][]string, error) {
	inDegree := make(map[string]int, len(names))
	dependents := make(map[string][]string)

	for _, name := range names {
		if _, dup := inDegree[name]; dup {
			return nil, fmt.Errorf("dag: duplicate node %q", name)
		}
		inDegree[name] = 0
	}

	for _, e := range edges {
		if _, ok := inDegree[e.From]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown node %q", e.From)
		}
		if _, ok := inDegree[e.To]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown node %q", e.To)
		}
		inDegree[e.To]++
		dependents[e.From] = append(dependents[e.From], e.To)
	}

	var queue []string
	for _, name := range names {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var levels [][]string
	visited := 0

	for len(queue) > 0 {
		levels = append(levels, queue)
		visited += len(queue)

		var next []string
		for _, name := range queue {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}

	if visited != len(names) {
		return nil, fmt.Errorf("%w: processed %d of %d nodes", ErrCycle, visited, len(names))
	}

	return levels, nil
}
