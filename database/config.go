package database

import (
	"fmt"
	"time"
)

// Config configures the SQLite connection behind the sql run store.
type Config struct {
	// DSN is the SQLite data source, e.g. "file:flowkit.db?_busy_timeout=5000".
	DSN string `mapstructure:"dsn"`

	// SQLite serializes writers, so a single open connection is the default.
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	ConnectAttempts int  `mapstructure:"connect_attempts"`
	Migrate         bool `mapstructure:"migrate"`

	// Queries slower than SlowQueryThreshold log at warn.
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	// LogLevel is silent, error, warn or info.
	LogLevel string `mapstructure:"log_level"`
}

func (c *Config) ApplyDefaults() {
	if c.DSN == "" {
		c.DSN = "file:flowkit.db?_busy_timeout=5000"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 1
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 1
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 3
	}
	if c.SlowQueryThreshold == 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

func (c *Config) Validate() error {
	switch {
	case c.DSN == "":
		return fmt.Errorf("database: dsn is required")
	case c.MaxIdleConns > c.MaxOpenConns:
		return fmt.Errorf("database: max_idle_conns (%d) exceeds max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	case c.ConnMaxLifetime < 0:
		return fmt.Errorf("database: conn_max_lifetime must not be negative (got: %s)", c.ConnMaxLifetime)
	case c.SlowQueryThreshold < 0:
		return fmt.Errorf("database: slow_query_threshold must not be negative (got: %s)", c.SlowQueryThreshold)
	}
	return nil
}
