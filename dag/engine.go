package dag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Observer receives node transitions as they happen. Calls for nodes of
// the same level may arrive concurrently.
type Observer interface {
	NodeStarted(name string, at time.Time)
	NodeFinished(result NodeResult)
}

// Engine executes a graph level by level. Levels are barriers: a level
// starts only after every node of the previous level finished. Nodes
// within a level run concurrently. When a node fails, nodes already
// running in its level are awaited, and no later level is started.
type Engine struct {
	// MaxParallel limits concurrent nodes per level (0 = unlimited).
	MaxParallel int
	// Now overrides the clock used for node timestamps.
	Now func() time.Time
}

// Execute runs the graph. It returns an error only if the graph is not a
// DAG or ctx is done before a level starts; node failures are reported in
// the result. The partial result is returned alongside a context error.
func (e *Engine) Execute(ctx context.Context, g *Graph, state *State, obs Observer) (*Result, error) {
	start := e.now()

	levels, err := BuildLevels(g)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Levels:      levels,
		NodeResults: make(map[string]NodeResult, len(g.Nodes)),
	}

	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			result.Duration = e.now().Sub(start)
			return result, err
		}

		if failed := e.executeLevel(ctx, g, state, level, result, obs); failed {
			result.Halted = true
			break
		}
	}

	result.Duration = e.now().Sub(start)
	return result, nil
}

func (e *Engine) executeLevel(ctx context.Context, g *Graph, state *State, names []string, result *Result, obs Observer) bool {
	var (
		mu     sync.Mutex
		failed bool
		group  errgroup.Group
	)
	// No derived context: a failing node must not cancel its siblings.
	// With a parallelism cap, nodes still queued when a sibling fails are
	// not started and stay out of the result.
	group.SetLimit(e.concurrency(len(names)))

	for _, name := range names {
		node, _ := g.Node(name)
		group.Go(func() error {
			mu.Lock()
			halted := failed
			mu.Unlock()
			if halted {
				return nil
			}

			nr := e.executeNode(ctx, node, state, obs)
			if nr.Status == StatusCompleted {
				state.Set(nr.Name, nr.Output)
			}
			if obs != nil {
				obs.NodeFinished(nr)
			}

			mu.Lock()
			defer mu.Unlock()
			result.NodeResults[nr.Name] = nr
			failed = failed || nr.Status == StatusFailed
			return nil
		})
	}

	_ = group.Wait()
	return failed
}

func (e *Engine) executeNode(ctx context.Context, node Node, state *State, obs Observer) (nr NodeResult) {
	nr = NodeResult{Name: node.Name(), StartedAt: e.now()}
	if obs != nil {
		obs.NodeStarted(nr.Name, nr.StartedAt)
	}

	defer func() {
		if r := recover(); r != nil {
			nr.Status = StatusFailed
			nr.Error = fmt.Errorf("dag: node %q panicked: %v", nr.Name, r)
			nr.Output = nil
			nr.CompletedAt = e.now()
		}
	}()

	output, err := node.Run(ctx, state)
	nr.CompletedAt = e.now()
	if err != nil {
		nr.Status = StatusFailed
		nr.Error = err
		return nr
	}
	nr.Status = StatusCompleted
	nr.Output = output
	return nr
}

func (e *Engine) concurrency(levelSize int) int {
	if e.MaxParallel <= 0 || e.MaxParallel > levelSize {
		return levelSize
	}
	return e.MaxParallel
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
