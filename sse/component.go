package sse

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/logger"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component runs the run-event Hub for the lifetime of the service.
type Component struct {
	hub     *Hub
	path    string
	start   sync.Once
	running atomic.Bool
	done    chan struct{}
}

// NewComponent wraps a fresh Hub. path is the stream route shown in the
// startup summary.
func NewComponent(path string, log *logger.Logger) *Component {
	return &Component{hub: NewHub(log), path: path, done: make(chan struct{})}
}

func (c *Component) Hub() *Hub { return c.hub }

func (c *Component) Name() string { return "sse" }

func (c *Component) Start(context.Context) error {
	c.start.Do(func() {
		c.running.Store(true)
		go func() {
			defer close(c.done)
			defer c.running.Store(false)
			c.hub.Run()
		}()
	})
	return nil
}

// Stop disconnects every stream and waits for the hub loop, at most
// until ctx is done.
func (c *Component) Stop(ctx context.Context) error {
	c.hub.Stop()
	if !c.running.Load() {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sse: hub did not stop: %w", ctx.Err())
	}
}

func (c *Component) Health(context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if !c.running.Load() {
		h.Status, h.Message = component.StatusUnhealthy, "hub not running"
		return h
	}
	h.Message = fmt.Sprintf("%d streams open", c.hub.ClientCount())
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{Name: "Run events", Type: "sse", Details: c.path}
}
