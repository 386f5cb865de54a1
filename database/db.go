package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/resilience"
)

// DB is an open GORM handle plus the pool it owns.
type DB struct {
	GormDB *gorm.DB
	log    *logger.Logger
	once   sync.Once
	err    error
}

// Open connects and pings, retrying with backoff until cfg.ConnectAttempts
// run out or ctx ends.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	gormCfg := &gorm.Config{Logger: newGormLogger(log, cfg.SlowQueryThreshold, parseLogLevel(cfg.LogLevel))}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.ConnectAttempts
	retry.InitialBackoff = 500 * time.Millisecond
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		log.Warn("Database connect failed, retrying", logger.Fields(
			logger.FieldAttempt, attempt, logger.FieldError, err.Error(), "backoff", backoff.String()))
	}
	db, err := resilience.Retry(ctx, retry, func() (*gorm.DB, error) { return connect(ctx, cfg, gormCfg) })
	if err != nil {
		return nil, fmt.Errorf("database connect: %w", err)
	}
	log.Debug("Database connected", logger.Fields("dsn", cfg.DSN))
	return &DB{GormDB: db, log: log}, nil
}

func connect(ctx context.Context, cfg Config, gormCfg *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the pool once; later calls return the first result.
func (d *DB) Close() error {
	d.once.Do(func() {
		sqlDB, err := d.GormDB.DB()
		if err != nil {
			d.err = err
			return
		}
		d.log.Debug("Closing database")
		d.err = sqlDB.Close()
	})
	return d.err
}

func (d *DB) PingContext(ctx context.Context) error {
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithContext returns a session bound to ctx.
func (d *DB) WithContext(ctx context.Context) *gorm.DB {
	return d.GormDB.WithContext(ctx)
}

// WithTransaction commits when fn returns nil and rolls back otherwise.
func (d *DB) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.GormDB.WithContext(ctx).Transaction(fn)
}
