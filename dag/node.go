package dag

import "context"

// Node is the execution unit in a DAG. Run reads upstream outputs from
// state; the engine stores the returned value under the node's name once
// the node completes.
type Node interface {
	Name() string
	Run(ctx context.Context, state *State) (any, error)
}

// NodeFunc adapts a function into a Node.
func NodeFunc(name string, fn func(ctx context.Context, state *State) (any, error)) Node {
	return &funcNode{name: name, fn: fn}
}

type funcNode struct {
	name string
	fn   func(ctx context.Context, state *State) (any, error)
}

func (n *funcNode) Name() string { return n.name }

func (n *funcNode) Run(ctx context.Context, state *State) (any, error) {
	return n.fn(ctx, state)
}
