package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/flowkit/logger"
)

type doc struct {
	Status string   `json:"status"`
	Done   int      `json:"done"`
	Nodes  []string `json:"nodes,omitempty"`
}

func newStore(t *testing.T, prefix string) (*TypedStore[doc], *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	client, err := New(Config{Enabled: true, Addr: mini.Addr()}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewTypedStore[doc](client, prefix), mini
}

func TestTypedStore_CreateAndLoad(t *testing.T) {
	store, mini := newStore(t, "flowkit:runs")
	ctx := context.Background()

	ok, err := store.Create(ctx, "r1", &doc{Status: "running"}, 0)
	if err != nil || !ok {
		t.Fatalf("Create = %v, %v", ok, err)
	}
	ok, err = store.Create(ctx, "r1", &doc{Status: "completed"}, 0)
	if err != nil || ok {
		t.Fatalf("second Create = %v, %v", ok, err)
	}

	got, err := store.Load(ctx, "r1")
	if err != nil || got == nil || got.Status != "running" {
		t.Fatalf("Load = %+v, %v", got, err)
	}
	if !mini.Exists("flowkit:runs:r1") {
		t.Errorf("keys = %v, want prefixed key", mini.Keys())
	}

	if got, err := store.Load(ctx, "missing"); got != nil || err != nil {
		t.Fatalf("Load(missing) = %+v, %v", got, err)
	}
}

func TestTypedStore_NoPrefix(t *testing.T) {
	store, mini := newStore(t, "")
	_, _ = store.Create(context.Background(), "bare", &doc{}, 0)
	if !mini.Exists("bare") {
		t.Fatalf("keys = %v", mini.Keys())
	}
}

func TestTypedStore_TTL(t *testing.T) {
	store, mini := newStore(t, "runs")
	ctx := context.Background()
	_, _ = store.Create(ctx, "r1", &doc{Status: "running"}, time.Hour)

	// Update keeps the ttl alive.
	mini.FastForward(50 * time.Minute)
	if _, err := store.Update(ctx, "r1", time.Hour, func(d *doc) error { d.Done++; return nil }); err != nil {
		t.Fatal(err)
	}
	mini.FastForward(50 * time.Minute)
	if got, _ := store.Load(ctx, "r1"); got == nil || got.Done != 1 {
		t.Fatalf("Load after refresh = %+v", got)
	}

	mini.FastForward(2 * time.Hour)
	if got, _ := store.Load(ctx, "r1"); got != nil {
		t.Fatalf("expired document still loads: %+v", got)
	}
}

func TestTypedStore_Update(t *testing.T) {
	store, _ := newStore(t, "runs")
	ctx := context.Background()
	_, _ = store.Create(ctx, "r1", &doc{Status: "running"}, 0)

	found, err := store.Update(ctx, "r1", 0, func(d *doc) error {
		d.Status = "completed"
		d.Nodes = append(d.Nodes, "llm-1")
		return nil
	})
	if err != nil || !found {
		t.Fatalf("Update = %v, %v", found, err)
	}
	got, _ := store.Load(ctx, "r1")
	if got.Status != "completed" || len(got.Nodes) != 1 {
		t.Fatalf("got %+v", got)
	}

	called := false
	found, err = store.Update(ctx, "gone", 0, func(*doc) error { called = true; return nil })
	if err != nil || found || called {
		t.Fatalf("missing key: found=%v err=%v called=%v", found, err, called)
	}

	rejected := errors.New("run already finished")
	_, err = store.Update(ctx, "r1", 0, func(d *doc) error {
		d.Status = "failed"
		return rejected
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("err = %v", err)
	}
	if got, _ := store.Load(ctx, "r1"); got.Status != "completed" {
		t.Fatalf("aborted update was written: %+v", got)
	}
}

func TestTypedStore_ConcurrentUpdatesAllApply(t *testing.T) {
	store, _ := newStore(t, "runs")
	ctx := context.Background()
	_, _ = store.Create(ctx, "r1", &doc{}, 0)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Update(ctx, "r1", 0, func(d *doc) error { d.Done++; return nil }); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got, _ := store.Load(ctx, "r1"); got.Done != 3 {
		t.Fatalf("done = %d, want 3", got.Done)
	}
}

func TestIsNil(t *testing.T) {
	store, _ := newStore(t, "")
	_, err := store.client.Get(context.Background(), "missing").Result()
	if !IsNil(err) {
		t.Fatalf("IsNil(%v) = false", err)
	}
}
