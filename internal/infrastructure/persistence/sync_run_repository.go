package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/realty/backend/internal/domain/idx"
	"github.com/realty/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSyncRunRepository implements idx.SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Create inserts an in-progress run. The pre-check gives a clean answer in
// the common case; the partial unique index decides races.
func (r *GormSyncRunRepository) Create(ctx context.Context, run *idx.SyncRun) error {
	active, err := r.FindActive(ctx, run.SyncType)
	if err != nil {
		return err
	}
	if active != nil {
		return idx.ErrSyncAlreadyRunning
	}

	var m models.SyncRunModel
	m.FromDomain(run)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return idx.ErrSyncAlreadyRunning
		}
		return fmt.Errorf("create sync run: %w", err)
	}
	return nil
}

// UpdateProgress stores counters while the run is in progress
func (r *GormSyncRunRepository) UpdateProgress(ctx context.Context, run *idx.SyncRun) error {
	var m models.SyncRunModel
	m.FromDomain(run)
	err := r.db.WithContext(ctx).Model(&models.SyncRunModel{}).
		Where("id = ? AND status = ?", run.ID, idx.SyncStatusInProgress).
		UpdateColumns(m.CounterColumns()).Error
	if err != nil {
		return fmt.Errorf("update sync run progress: %w", err)
	}
	return nil
}

// Finish writes the terminal state. The status guard makes a second
// terminal write a no-op that reports ErrSyncRunAlreadyFinished.
func (r *GormSyncRunRepository) Finish(ctx context.Context, run *idx.SyncRun) error {
	if !run.Status.IsTerminal() {
		return fmt.Errorf("finish sync run %s: status %s is not terminal", run.ID, run.Status)
	}

	var m models.SyncRunModel
	m.FromDomain(run)
	columns := m.CounterColumns()
	columns["status"] = m.Status
	columns["completed_at"] = m.CompletedAt
	columns["error_message"] = m.ErrorMessage
	columns["note"] = m.Note

	res := r.db.WithContext(ctx).Model(&models.SyncRunModel{}).
		Where("id = ? AND status = ?", run.ID, idx.SyncStatusInProgress).
		UpdateColumns(columns)
	if res.Error != nil {
		return fmt.Errorf("finish sync run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return idx.ErrSyncRunAlreadyFinished
	}
	return nil
}

// FindByID finds a run by ID
func (r *GormSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*idx.SyncRun, error) {
	var m models.SyncRunModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, idx.ErrSyncRunNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindLatest returns the most recently started run, or nil when none exist
func (r *GormSyncRunRepository) FindLatest(ctx context.Context) (*idx.SyncRun, error) {
	runs, err := r.FindRecent(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// FindRecent returns up to limit runs, newest first
func (r *GormSyncRunRepository) FindRecent(ctx context.Context, limit int) ([]*idx.SyncRun, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Order("started_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]*idx.SyncRun, 0, len(rows))
	for i := range rows {
		runs = append(runs, rows[i].ToDomain())
	}
	return runs, nil
}

// FindActive returns the in-progress run of a type, or nil
func (r *GormSyncRunRepository) FindActive(ctx context.Context, syncType idx.SyncType) (*idx.SyncRun, error) {
	var rows []models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Where("sync_type = ? AND status = ?", syncType, idx.SyncStatusInProgress).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].ToDomain(), nil
}

// MarkStale fails in-progress runs started before the cutoff
func (r *GormSyncRunRepository) MarkStale(ctx context.Context, startedBefore time.Time, message string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.SyncRunModel{}).
		Where("status = ? AND started_at < ?", idx.SyncStatusInProgress, startedBefore.UTC()).
		UpdateColumns(map[string]any{
			"status":        idx.SyncStatusError,
			"completed_at":  now,
			"error_message": message,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("mark stale sync runs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

var _ idx.SyncRunRepository = (*GormSyncRunRepository)(nil)
