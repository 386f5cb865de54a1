package component

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/flowkit/logger"
)

const (
	// stopTimeout bounds each component's Stop within the shutdown.
	stopTimeout = 10 * time.Second
	// healthTimeout bounds each component's Health so one hung Redis
	// ping cannot stall /health.
	healthTimeout = 3 * time.Second
)

type entry struct {
	component Component
	started   bool
}

// Registry starts components in registration order and stops them in
// reverse, so register dependencies first: the database before the run
// store that uses it, the local runner before the HTTP server.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	byName  map[string]*entry
	log     *logger.Logger
}

// NewRegistry accepts a nil logger.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNop()
	}
	return &Registry{byName: map[string]*entry{}, log: log.WithComponent("registry")}
}

func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.Name()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("component %s already registered", name)
	}
	e := &entry{component: c}
	r.entries = append(r.entries, e)
	r.byName[name] = e
	return nil
}

// StartAll starts what is not yet running and stops at the first
// failure. Components started before it stay marked so StopAll releases
// them.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.started {
			continue
		}
		name := e.component.Name()
		began := time.Now()
		if err := e.component.Start(ctx); err != nil {
			r.log.Error("Component start failed", logger.Fields(logger.FieldComponent, name, logger.FieldError, err.Error()))
			return fmt.Errorf("start %s: %w", name, err)
		}
		e.started = true
		r.log.Debug("Component started", logger.Fields(logger.FieldComponent, name, "took_ms", time.Since(began).Milliseconds()))
	}
	return nil
}

// StopAll stops running components newest first. Every one is attempted
// and the failures are joined.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if !e.started {
			continue
		}
		e.started = false
		name := e.component.Name()
		stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		err := e.component.Stop(stopCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
			r.log.Error("Component stop failed", logger.Fields(logger.FieldComponent, name, logger.FieldError, err.Error()))
		}
	}
	return errors.Join(errs...)
}

// HealthAll checks every component concurrently and returns the reports
// in registration order.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Health, len(r.entries))
	var g errgroup.Group
	for i, e := range r.entries {
		g.Go(func() error {
			hctx, cancel := context.WithTimeout(ctx, healthTimeout)
			defer cancel()
			out[i] = e.component.Health(hctx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Get returns the component registered under name, or nil.
func (r *Registry) Get(name string) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byName[name]; ok {
		return e.component
	}
	return nil
}

func (r *Registry) All() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Component, len(r.entries))
	for i, e := range r.entries {
		all[i] = e.component
	}
	return all
}
