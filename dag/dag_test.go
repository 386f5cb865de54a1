package dag

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --- test helpers ---

func constNode(name string, out any) Node {
	return NodeFunc(name, func(context.Context, *State) (any, error) { return out, nil })
}

func graphOf(names []string, edges ...Edge) *Graph {
	g := &Graph{Edges: edges}
	for _, n := range names {
		g.Nodes = append(g.Nodes, constNode(n, n))
	}
	return g
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished map[string]Status
}

func (o *recordingObserver) NodeStarted(name string, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, name)
}

func (o *recordingObserver) NodeFinished(r NodeResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished == nil {
		o.finished = map[string]Status{}
	}
	o.finished[r.Name] = r.Status
}

// --- Levels ---

func TestLevels_SingleNode(t *testing.T) {
	levels, err := Levels([]string{"only"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(levels, [][]string{{"only"}}) {
		t.Fatalf("levels = %v", levels)
	}
}

func TestLevels_TwoChainsJoin(t *testing.T) {
	names := []string{"a1", "b1", "a2", "b2", "join"}
	edges := []Edge{
		{From: "a1", To: "a2"},
		{From: "b1", To: "b2"},
		{From: "a2", To: "join"},
		{From: "b2", To: "join"},
	}
	levels, err := Levels(names, edges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]string{{"a1", "b1"}, {"a2", "b2"}, {"join"}}
	if !reflect.DeepEqual(levels, want) {
		t.Fatalf("levels = %v, want %v", levels, want)
	}
}

func TestLevels_FrontierInsertionOrder(t *testing.T) {
	levels, err := Levels([]string{"z", "y", "x"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(levels[0], []string{"z", "y", "x"}) {
		t.Fatalf("level order should follow declaration: %v", levels[0])
	}
}

func TestLevels_EdgeInvariant(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f"}
	edges := []Edge{
		{From: "a", To: "c"}, {From: "b", To: "c"}, {From: "a", To: "d"},
		{From: "c", To: "e"}, {From: "d", To: "e"}, {From: "a", To: "f"},
		{From: "e", To: "f"},
	}
	levels, err := Levels(names, edges)
	if err != nil {
		t.Fatal(err)
	}

	index := map[string]int{}
	count := 0
	for i, level := range levels {
		for _, n := range level {
			if _, dup := index[n]; dup {
				t.Fatalf("node %s appears twice", n)
			}
			index[n] = i
			count++
		}
	}
	if count != len(names) {
		t.Fatalf("levels hold %d nodes, want %d", count, len(names))
	}
	for _, e := range edges {
		if index[e.From] >= index[e.To] {
			t.Errorf("edge %s->%s violates level order (%d >= %d)", e.From, e.To, index[e.From], index[e.To])
		}
	}
}

func TestLevels_CycleDetected(t *testing.T) {
	tests := []struct {
		name  string
		edges []Edge
	}{
		{"self loop", []Edge{{From: "a", To: "a"}}},
		{"two cycle", []Edge{{From: "a", To: "b"}, {From: "b", To: "a"}}},
		{"cycle behind root", []Edge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "c", To: "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Levels([]string{"a", "b", "c"}, tt.edges)
			if !errors.Is(err, ErrCycle) {
				t.Fatalf("expected ErrCycle, got %v", err)
			}
			if IsAcyclic([]string{"a", "b", "c"}, tt.edges) {
				t.Fatal("IsAcyclic should be false")
			}
		})
	}
}

func TestLevels_UnknownAndDuplicate(t *testing.T) {
	if _, err := Levels([]string{"a"}, []Edge{{From: "a", To: "ghost"}}); err == nil {
		t.Fatal("expected unknown node error")
	}
	if _, err := Levels([]string{"a", "a"}, nil); err == nil {
		t.Fatal("expected duplicate node error")
	}
}

// --- Engine ---

func TestEngine_PassesOutputsThroughState(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			constNode("a", 2),
			constNode("b", 3),
			NodeFunc("sum", func(_ context.Context, s *State) (any, error) {
				a, _ := s.Get("a")
				b, _ := s.Get("b")
				return a.(int) + b.(int), nil
			}),
		},
		Edges: []Edge{{From: "a", To: "sum"}, {From: "b", To: "sum"}},
	}

	res, err := (&Engine{}).Execute(context.Background(), g, NewState(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.NodeResults["sum"].Output != 5 {
		t.Fatalf("sum = %v", res.NodeResults["sum"].Output)
	}
	if res.Halted || res.Failed() {
		t.Fatal("run should not be halted")
	}
}

func TestEngine_LevelIsABarrier(t *testing.T) {
	var finished atomic.Int32
	slow := NodeFunc("slow", func(context.Context, *State) (any, error) {
		time.Sleep(30 * time.Millisecond)
		finished.Add(1)
		return nil, nil
	})
	fast := NodeFunc("fast", func(context.Context, *State) (any, error) {
		finished.Add(1)
		return nil, nil
	})
	var seen int32
	next := NodeFunc("next", func(context.Context, *State) (any, error) {
		seen = finished.Load()
		return nil, nil
	})
	g := &Graph{Nodes: []Node{slow, fast, next}, Edges: []Edge{{From: "fast", To: "next"}}}

	if _, err := (&Engine{}).Execute(context.Background(), g, NewState(), nil); err != nil {
		t.Fatal(err)
	}
	if seen != 2 {
		t.Fatalf("next started before level 0 drained (saw %d finished)", seen)
	}
}

func TestEngine_RunsLevelConcurrently(t *testing.T) {
	var active, peak atomic.Int32
	gate := make(chan struct{})
	mk := func(name string) Node {
		return NodeFunc(name, func(context.Context, *State) (any, error) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			if n == 3 {
				close(gate)
			}
			select {
			case <-gate:
			case <-time.After(time.Second):
			}
			active.Add(-1)
			return nil, nil
		})
	}
	g := &Graph{Nodes: []Node{mk("a"), mk("b"), mk("c")}}
	if _, err := (&Engine{}).Execute(context.Background(), g, NewState(), nil); err != nil {
		t.Fatal(err)
	}
	if peak.Load() != 3 {
		t.Fatalf("peak concurrency = %d, want 3", peak.Load())
	}
}

func TestEngine_MaxParallel(t *testing.T) {
	var active, peak atomic.Int32
	mk := func(name string) Node {
		return NodeFunc(name, func(context.Context, *State) (any, error) {
			n := active.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
			return nil, nil
		})
	}
	g := &Graph{Nodes: []Node{mk("a"), mk("b"), mk("c"), mk("d")}}
	if _, err := (&Engine{MaxParallel: 1}).Execute(context.Background(), g, NewState(), nil); err != nil {
		t.Fatal(err)
	}
	if peak.Load() != 1 {
		t.Fatalf("peak = %d, want 1", peak.Load())
	}
}

func TestEngine_MaxParallelSkipsQueuedSiblingsAfterFailure(t *testing.T) {
	var ran atomic.Int32
	counted := func(name string) Node {
		return NodeFunc(name, func(context.Context, *State) (any, error) {
			ran.Add(1)
			return name, nil
		})
	}
	g := &Graph{Nodes: []Node{
		NodeFunc("bad", func(context.Context, *State) (any, error) {
			return nil, errors.New("boom")
		}),
		counted("b"),
		counted("c"),
	}}
	obs := &recordingObserver{}

	res, err := (&Engine{MaxParallel: 1}).Execute(context.Background(), g, NewState(), obs)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Halted || res.NodeResults["bad"].Status != StatusFailed {
		t.Fatalf("result = %+v", res)
	}
	if ran.Load() != 0 {
		t.Fatalf("%d queued siblings started after the failure", ran.Load())
	}
	for _, name := range []string{"b", "c"} {
		if _, ok := res.NodeResults[name]; ok {
			t.Errorf("%s has a result", name)
		}
	}
	if len(obs.started) != 1 {
		t.Errorf("started = %v", obs.started)
	}
}

func TestEngine_HaltsAfterFailedLevel(t *testing.T) {
	var siblingDone atomic.Bool
	g := &Graph{
		Nodes: []Node{
			constNode("a", "x"),
			NodeFunc("bad", func(context.Context, *State) (any, error) {
				return nil, errors.New("No credential configured")
			}),
			NodeFunc("sibling", func(context.Context, *State) (any, error) {
				time.Sleep(20 * time.Millisecond)
				siblingDone.Store(true)
				return "ok", nil
			}),
			constNode("downstream", "never"),
		},
		Edges: []Edge{
			{From: "a", To: "bad"},
			{From: "a", To: "sibling"},
			{From: "bad", To: "downstream"},
		},
	}
	obs := &recordingObserver{}

	res, err := (&Engine{}).Execute(context.Background(), g, NewState(), obs)
	if err != nil {
		t.Fatalf("node failures should not surface as errors: %v", err)
	}
	if !res.Halted || !res.Failed() {
		t.Fatal("expected halted, failed result")
	}
	if res.NodeResults["bad"].Error.Error() != "No credential configured" {
		t.Fatalf("error = %v", res.NodeResults["bad"].Error)
	}
	if !siblingDone.Load() || res.NodeResults["sibling"].Status != StatusCompleted {
		t.Fatal("same-level sibling should finish")
	}
	if _, ran := res.NodeResults["downstream"]; ran {
		t.Fatal("downstream level should never start")
	}
	if _, ran := obs.finished["downstream"]; ran {
		t.Fatal("observer saw downstream")
	}
	if obs.finished["bad"] != StatusFailed {
		t.Fatalf("observer status for bad = %s", obs.finished["bad"])
	}
}

func TestEngine_RecoversPanics(t *testing.T) {
	g := &Graph{Nodes: []Node{NodeFunc("p", func(context.Context, *State) (any, error) {
		panic("kaboom")
	})}}
	res, err := (&Engine{}).Execute(context.Background(), g, NewState(), nil)
	if err != nil {
		t.Fatal(err)
	}
	nr := res.NodeResults["p"]
	if nr.Status != StatusFailed || nr.Error == nil {
		t.Fatalf("panic should fail the node, got %+v", nr)
	}
}

func TestEngine_CancelledContextStopsBeforeNextLevel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Graph{
		Nodes: []Node{
			NodeFunc("first", func(context.Context, *State) (any, error) {
				cancel()
				return nil, nil
			}),
			constNode("second", nil),
		},
		Edges: []Edge{{From: "first", To: "second"}},
	}
	res, err := (&Engine{}).Execute(ctx, g, NewState(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil || res.NodeResults["first"].Status != StatusCompleted {
		t.Fatal("partial result should include the first level")
	}
	if _, ran := res.NodeResults["second"]; ran {
		t.Fatal("second level should not run")
	}
}

func TestEngine_RejectsCycle(t *testing.T) {
	g := graphOf([]string{"a", "b"}, Edge{From: "a", To: "b"}, Edge{From: "b", To: "a"})
	if _, err := (&Engine{}).Execute(context.Background(), g, NewState(), nil); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestEngine_InjectedClock(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ticks atomic.Int64
	e := &Engine{Now: func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Second)
	}}
	res, err := e.Execute(context.Background(), graphOf([]string{"a"}), NewState(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if d := res.NodeResults["a"].Duration(); d != time.Second {
		t.Fatalf("node duration = %v, want 1s", d)
	}
}
