package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kbukum/flowkit/database"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/workflow"
)

// runRow maps the workflow_runs table. Node results are one JSON column.
type runRow struct {
	ID              string `gorm:"primaryKey"`
	WorkflowRef     string
	OwnerID         string
	Scope           string
	Status          string
	NodeResults     string
	StartedAt       time.Time
	CompletedAt     *time.Time
	DurationSeconds *int64
	UpdatedAt       time.Time
}

func (runRow) TableName() string { return "workflow_runs" }

func toRow(r *workflow.Run) (*runRow, error) {
	results, err := json.Marshal(r.NodeResults)
	if err != nil {
		return nil, fmt.Errorf("encode node results: %w", err)
	}
	return &runRow{
		ID:              r.ID,
		WorkflowRef:     r.WorkflowRef,
		OwnerID:         r.OwnerID,
		Scope:           r.Scope,
		Status:          string(r.Status),
		NodeResults:     string(results),
		StartedAt:       r.StartedAt.UTC(),
		CompletedAt:     r.CompletedAt,
		DurationSeconds: r.DurationSeconds,
	}, nil
}

func (row *runRow) toRun() (*workflow.Run, error) {
	run := &workflow.Run{
		ID:              row.ID,
		WorkflowRef:     row.WorkflowRef,
		OwnerID:         row.OwnerID,
		Scope:           row.Scope,
		Status:          workflow.RunStatus(row.Status),
		StartedAt:       row.StartedAt,
		CompletedAt:     row.CompletedAt,
		DurationSeconds: row.DurationSeconds,
	}
	if err := json.Unmarshal([]byte(row.NodeResults), &run.NodeResults); err != nil {
		return nil, fmt.Errorf("decode node results of run %s: %w", row.ID, err)
	}
	return run, nil
}

// SQLStore keeps runs in the workflow_runs table.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore creates a SQLStore over a migrated database.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Create implements Store.
func (s *SQLStore) Create(ctx context.Context, run *workflow.Run) (string, error) {
	row, err := toRow(run)
	if err != nil {
		return "", errors.Internal(err)
	}
	if row.ID == "" {
		row.ID = newID()
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", database.FromDatabase(err, "run", row.ID)
	}
	return row.ID, nil
}

// Update implements Store. The read-modify-write runs in one transaction.
func (s *SQLStore) Update(ctx context.Context, id string, update workflow.RunUpdate) error {
	return s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		var row runRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return database.FromDatabase(err, "run", id)
		}
		run, err := row.toRun()
		if err != nil {
			return errors.Internal(err)
		}
		update.Apply(run)
		next, err := toRow(run)
		if err != nil {
			return errors.Internal(err)
		}
		if err := tx.Model(&runRow{}).Where("id = ?", id).Updates(map[string]any{
			"status":           next.Status,
			"node_results":     next.NodeResults,
			"completed_at":     next.CompletedAt,
			"duration_seconds": next.DurationSeconds,
			"updated_at":       time.Now().UTC(),
		}).Error; err != nil {
			return database.FromDatabase(err, "run", id)
		}
		return nil
	})
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, id string) (*workflow.Run, error) {
	var row runRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, database.FromDatabase(err, "run", id)
	}
	run, err := row.toRun()
	if err != nil {
		return nil, errors.Internal(err)
	}
	return run, nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context, ownerID string, limit int) ([]*workflow.Run, error) {
	var rows []runRow
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("started_at DESC, id DESC").
		Limit(normalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, database.FromDatabase(err, "run", ownerID)
	}
	runs := make([]*workflow.Run, 0, len(rows))
	for i := range rows {
		run, err := rows[i].toRun()
		if err != nil {
			return nil, errors.Internal(err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
