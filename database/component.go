package database

import (
	"context"
	"fmt"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/database/migration"
	"github.com/kbukum/flowkit/logger"
)

// Component wraps DB and implements component.Component.
type Component struct {
	db  *DB
	cfg Config
	log *logger.Logger
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a database component for the component registry.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Component{cfg: cfg, log: log.WithComponent("database")}
}

// DB returns the underlying *DB, or nil before Start.
func (c *Component) DB() *DB {
	return c.db
}

// Name returns the component name.
func (c *Component) Name() string { return "database" }

// Start connects and applies migrations when configured.
func (c *Component) Start(ctx context.Context) error {
	db, err := Open(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("database start: %w", err)
	}
	c.db = db

	if c.cfg.Migrate {
		sqlDB, err := db.GormDB.DB()
		if err != nil {
			return fmt.Errorf("database migrate: %w", err)
		}
		version, err := migration.Up(sqlDB)
		if err != nil {
			return fmt.Errorf("database migrate: %w", err)
		}
		c.log.Info("Schema up to date", logger.Fields("version", version))
	}
	return nil
}

// Stop closes the connection.
func (c *Component) Stop(context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Health pings the database.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.db == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "database not initialized"}
	}
	if err := c.db.PingContext(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns summary info for the bootstrap display.
func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("sqlite pool=%d/%d", c.cfg.MaxOpenConns, c.cfg.MaxIdleConns)
	if c.cfg.Migrate {
		details += " migrate=on"
	}
	return component.Description{Name: "Database", Type: "database", Details: details}
}
