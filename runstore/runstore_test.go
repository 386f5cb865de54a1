package runstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/flowkit/database/dbtest"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/redis/redistest"
	"github.com/kbukum/flowkit/workflow"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	client, _ := redistest.New(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sql":    NewSQLStore(dbtest.Open(t)),
		"redis":  NewRedisStore(client, RedisConfig{TTL: time.Hour}),
	}
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRun(owner string, started time.Time) *workflow.Run {
	nodes := []workflow.Node{
		{ID: "a", Type: workflow.TypeText, Data: workflow.TextData{Text: "hi"}},
		{ID: "b", Type: workflow.TypeLLM, Data: workflow.LLMData{Model: workflow.DefaultModel}},
	}
	return workflow.NewRun("", owner, nodes, started)
}

func TestStore_Lifecycle(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := store.Create(ctx, newRun("u1", t0))
			if err != nil || id == "" {
				t.Fatalf("Create = %q, %v", id, err)
			}

			got, err := store.Get(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != workflow.RunRunning || got.WorkflowRef != workflow.InlineWorkflow || got.Scope != workflow.ScopeFull {
				t.Fatalf("created run = %+v", got)
			}
			if got.NodeResults["b"].Status != workflow.NodePending {
				t.Fatalf("node b = %+v", got.NodeResults["b"])
			}

			started := t0.Add(time.Second)
			if err := store.Update(ctx, id, workflow.NodeUpdate(workflow.NodeResult{
				NodeID: "a", NodeType: workflow.TypeText, Status: workflow.NodeCompleted,
				Output: workflow.TextOutput{Text: "hi"}, StartedAt: &started, CompletedAt: &started,
			})); err != nil {
				t.Fatal(err)
			}

			run, _ := store.Get(ctx, id)
			run.NodeResults["b"] = workflow.NodeResult{NodeID: "b", NodeType: workflow.TypeLLM, Status: workflow.NodeFailed, Error: "boom"}
			run.Finish(t0.Add(2500 * time.Millisecond))
			if err := store.Update(ctx, id, workflow.FinalUpdate(run)); err != nil {
				t.Fatal(err)
			}

			final, err := store.Get(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			if final.Status != workflow.RunFailed || final.DurationSeconds == nil || *final.DurationSeconds != 2 {
				t.Fatalf("final run = %+v", final)
			}
			out, ok := final.NodeResults["a"].Output.(workflow.TextOutput)
			if !ok || out.Text != "hi" {
				t.Fatalf("node a output = %#v", final.NodeResults["a"].Output)
			}
			if final.NodeResults["b"].Error != "boom" {
				t.Fatalf("node b = %+v", final.NodeResults["b"])
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Get(ctx, "missing"); !errors.IsCode(err, errors.ErrCodeNotFound) {
				t.Fatalf("Get err = %v", err)
			}
			if err := store.Update(ctx, "missing", workflow.RunUpdate{}); !errors.IsCode(err, errors.ErrCodeNotFound) {
				t.Fatalf("Update err = %v", err)
			}
		})
	}
}

func TestStore_ListByOwner(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var ids []string
			for i := 0; i < 3; i++ {
				id, err := store.Create(ctx, newRun("u1", t0.Add(time.Duration(i)*time.Minute)))
				if err != nil {
					t.Fatal(err)
				}
				ids = append(ids, id)
			}
			if _, err := store.Create(ctx, newRun("u2", t0)); err != nil {
				t.Fatal(err)
			}

			runs, err := store.List(ctx, "u1", 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
				t.Fatalf("List = %v", runIDs(runs))
			}
		})
	}
}

func TestStore_ConcurrentNodeUpdates(t *testing.T) {
	for name, store := range backends(t) {
		if name == "sql" {
			// One connection serialises writers; covered by the lifecycle test.
			continue
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, _ := store.Create(ctx, newRun("u1", t0))
			var wg sync.WaitGroup
			for _, nodeID := range []string{"a", "b"} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := store.Update(ctx, id, workflow.NodeUpdate(workflow.NodeResult{NodeID: nodeID, Status: workflow.NodeRunning})); err != nil {
						t.Error(err)
					}
				}()
			}
			wg.Wait()
			run, _ := store.Get(ctx, id)
			if run.NodeResults["a"].Status != workflow.NodeRunning || run.NodeResults["b"].Status != workflow.NodeRunning {
				t.Fatalf("lost update: %+v", run.NodeResults)
			}
		})
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, _ := s.Create(ctx, newRun("u1", t0))
	run, _ := s.Get(ctx, id)
	run.NodeResults["a"] = workflow.NodeResult{NodeID: "a", Status: workflow.NodeFailed}
	again, _ := s.Get(ctx, id)
	if again.NodeResults["a"].Status != workflow.NodePending {
		t.Fatal("caller mutated the stored run")
	}
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{"": BackendMemory, "sql": BackendSQL, "redis": BackendRedis} {
		if got, err := ParseBackend(in); err != nil || got != want {
			t.Errorf("ParseBackend(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseBackend("mongo"); err == nil {
		t.Error("unknown backend accepted")
	}
}

func runIDs(runs []*workflow.Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
