package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/database/migration"
	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
)

func memoryConfig(name string) Config {
	return Config{
		DSN:             fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnectAttempts: 1,
		Migrate:         true,
		LogLevel:        "silent",
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	comp := NewComponent(memoryConfig("component_lifecycle"), logger.NewNop())
	ctx := context.Background()

	if comp.DB() != nil {
		t.Fatal("DB() should be nil before Start")
	}
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Fatalf("health before start = %+v", h)
	}
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := comp.Health(ctx); h.Status != component.StatusHealthy {
		t.Fatalf("health = %+v", h)
	}

	sqlDB, _ := comp.DB().GormDB.DB()
	v, err := migration.Version(sqlDB)
	if err != nil || v != 2 {
		t.Fatalf("schema version = %d, %v; want 2", v, err)
	}

	var n int64
	if err := comp.DB().WithContext(ctx).Table("workflow_runs").Count(&n).Error; err != nil {
		t.Fatalf("workflow_runs missing: %v", err)
	}

	if err := comp.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if err := comp.DB().Close(); err != nil {
		t.Fatal("second Close should be a no-op")
	}
}

func TestMigrationUpIsIdempotent(t *testing.T) {
	db, err := Open(context.Background(), memoryConfig("migrate_twice"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	sqlDB, _ := db.GormDB.DB()
	for i := 0; i < 2; i++ {
		if v, err := migration.Up(sqlDB); err != nil || v != 2 {
			t.Fatalf("run %d: version %d, %v", i, v, err)
		}
	}
	if err := migration.Down(sqlDB); err != nil {
		t.Fatal(err)
	}
	if v, _ := migration.Version(sqlDB); v != 0 {
		t.Fatalf("version after down = %d", v)
	}
}

func TestWithTransaction_RollsBack(t *testing.T) {
	db, err := Open(context.Background(), memoryConfig("tx_rollback"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	sqlDB, _ := db.GormDB.DB()
	if _, err := migration.Up(sqlDB); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = db.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Exec(`INSERT INTO provider_credentials (owner_id, provider, sealed_key, created_at, updated_at)
			VALUES ('u1', 'gemini', 'x', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	var n int64
	db.WithContext(context.Background()).Table("provider_credentials").Count(&n)
	if n != 0 {
		t.Fatalf("rows = %d after rollback", n)
	}
}

func TestFromDatabase(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperrors.ErrorCode
	}{
		{"not found", gorm.ErrRecordNotFound, apperrors.ErrCodeNotFound},
		{"duplicate", gorm.ErrDuplicatedKey, apperrors.ErrCodeConflict},
		{"busy", errors.New("database is locked"), apperrors.ErrCodeDatabaseError},
		{"other", errors.New("disk I/O error"), apperrors.ErrCodeDatabaseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromDatabase(tt.err, "run", "r1"); got.Code != tt.code {
				t.Fatalf("code = %s, want %s", got.Code, tt.code)
			}
		})
	}
	if FromDatabase(nil, "run", "") != nil {
		t.Fatal("nil error should map to nil")
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cfg.MaxIdleConns = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("idle > open should fail")
	}
	cfg = Config{DSN: "x", MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative lifetime should fail")
	}
}

func TestGormLogger_Levels(t *testing.T) {
	for in, want := range map[string]gormlogger.LogLevel{
		"SILENT": gormlogger.Silent,
		"error":  gormlogger.Error,
		"info":   gormlogger.Info,
		"":       gormlogger.Warn,
		"trace":  gormlogger.Warn,
	} {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}

	l := newGormLogger(logger.NewNop(), 0, gormlogger.Warn)
	calls := 0
	sql := func() (string, int64) { calls++; return "SELECT 1", 1 }
	l.Trace(context.Background(), time.Now(), sql, nil)
	if calls != 0 {
		t.Error("a fast successful query should not be rendered at warn")
	}
	l.Trace(context.Background(), time.Now(), sql, errors.New("database is locked"))
	l.LogMode(gormlogger.Info).Trace(context.Background(), time.Now(), sql, nil)
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
