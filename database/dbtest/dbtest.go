// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/kbukum/flowkit/database"
	"github.com/kbukum/flowkit/database/migration"
	"github.com/kbukum/flowkit/logger"
)

var seq atomic.Int64

// Open returns a private in-memory database with the flowkit schema
// applied. It is closed when the test ends.
func Open(t testing.TB) *database.DB {
	t.Helper()
	cfg := database.Config{
		DSN:             fmt.Sprintf("file:flowkit_test_%d?mode=memory&cache=shared", seq.Add(1)),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnectAttempts: 1,
		LogLevel:        "silent",
	}
	db, err := database.Open(context.Background(), cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("dbtest: open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.GormDB.DB()
	if err != nil {
		t.Fatalf("dbtest: %v", err)
	}
	if _, err := migration.Up(sqlDB); err != nil {
		t.Fatalf("dbtest: migrate: %v", err)
	}
	return db
}
