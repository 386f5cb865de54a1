package runstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/workflow"
)

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 50

// Store persists runs. Get returns a NOT_FOUND AppError for unknown ids.
type Store interface {
	// Create stores run and returns its id, assigning one when empty.
	Create(ctx context.Context, run *workflow.Run) (string, error)
	Update(ctx context.Context, id string, update workflow.RunUpdate) error
	Get(ctx context.Context, id string) (*workflow.Run, error)
	// List returns the owner's most recent runs first.
	List(ctx context.Context, ownerID string, limit int) ([]*workflow.Run, error)
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQL    Backend = "sql"
	BackendRedis  Backend = "redis"
)

// ParseBackend validates a configured backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case "":
		return BackendMemory, nil
	case BackendMemory, BackendSQL, BackendRedis:
		return b, nil
	}
	return "", fmt.Errorf("runstore: unknown backend %q", s)
}

func newID() string {
	return ulid.Make().String()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func notFound(id string) error {
	return errors.NotFound("run", id)
}

// MemoryStore keeps runs in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*workflow.Run
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*workflow.Run)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, run *workflow.Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := run.Clone()
	if c.ID == "" {
		c.ID = newID()
	}
	if _, exists := s.runs[c.ID]; exists {
		return "", errors.Conflict(fmt.Sprintf("Run %s already exists.", c.ID))
	}
	s.runs[c.ID] = c
	return c.ID, nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, id string, update workflow.RunUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return notFound(id)
	}
	update.Apply(run)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*workflow.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, notFound(id)
	}
	return run.Clone(), nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, ownerID string, limit int) ([]*workflow.Run, error) {
	s.mu.RLock()
	var runs []*workflow.Run
	for _, r := range s.runs {
		if r.OwnerID == ownerID {
			runs = append(runs, r.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(runs, func(a, b *workflow.Run) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return compareStrings(b.ID, a.ID)
	})
	if limit = normalizeLimit(limit); len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
