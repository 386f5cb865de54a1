package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/flowkit/logger"
)

// Client is a go-redis client built from Config. The embedded client
// carries every command; Client adds the health check and an idempotent
// Close.
type Client struct {
	*goredis.Client
	log       *logger.Logger
	closeOnce sync.Once
	closeErr  error
}

// New builds the client without dialing. Connections open lazily; call
// Check to verify the server is reachable.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return nil, errors.New("redis: not enabled")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}

	log.Debug("Redis client configured", logger.Fields(
		"addr", cfg.Addr,
		"db", cfg.DB,
		"pool_size", cfg.PoolSize,
		"password", logger.MaskSecret(cfg.Password),
	))
	return &Client{
		Client: goredis.NewClient(&goredis.Options{
			Addr:            cfg.Addr,
			Password:        cfg.Password,
			DB:              cfg.DB,
			PoolSize:        cfg.PoolSize,
			MinIdleConns:    cfg.MinIdleConns,
			MaxRetries:      cfg.MaxRetries,
			DialTimeout:     cfg.DialTimeout,
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		}),
		log: log,
	}, nil
}

// Check round-trips a PING.
func (c *Client) Check(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the pool once; later calls return the first result.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.log.Info("Closing Redis connection")
		c.closeErr = c.Client.Close()
	})
	return c.closeErr
}

// IsNil reports a missing key.
func IsNil(err error) bool { return errors.Is(err, goredis.Nil) }
