package redis

import (
	"context"
	"fmt"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/resilience"
)

var _ component.Component = (*Component)(nil)

// Component owns the connection of the Redis run store.
type Component struct {
	cfg    Config
	log    *logger.Logger
	client *Client
}

func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("redis")}
}

// Client is nil until Start succeeds.
func (c *Component) Client() *Client { return c.client }

func (c *Component) Name() string { return "redis" }

// Start connects and pings, retrying the ping so the service can start
// alongside a Redis container that is still coming up.
func (c *Component) Start(ctx context.Context) error {
	client, err := New(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("redis start: %w", err)
	}
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 5
	if err := resilience.RetryFunc(ctx, retry, func() error { return client.Check(ctx) }); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis start: %w", err)
	}
	c.client = client
	c.log.Info("Redis connected", logger.Fields("addr", c.cfg.Addr, "db", c.cfg.DB))
	return nil
}

func (c *Component) Stop(context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health pings the server. An exhausted pool, every connection busy and
// callers timing out waiting for one, reports degraded.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.client == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not connected"
		return h
	}
	if err := c.client.Check(ctx); err != nil {
		h.Status, h.Message = component.StatusUnhealthy, err.Error()
		return h
	}
	stats := c.client.PoolStats()
	h.Message = fmt.Sprintf("%d/%d connections, %d idle", stats.TotalConns, c.cfg.PoolSize, stats.IdleConns)
	if stats.IdleConns == 0 && int(stats.TotalConns) >= c.cfg.PoolSize && stats.Timeouts > 0 {
		h.Status = component.StatusDegraded
	}
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Redis",
		Type:    "redis",
		Details: fmt.Sprintf("%s db=%d pool=%d", c.cfg.Addr, c.cfg.DB, c.cfg.PoolSize),
	}
}
