package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/realty/backend/internal/domain/idx"
)

// SyncRunModel is the persistence model for idx.SyncRun. The partial
// unique index allows at most one in-progress run per sync type.
type SyncRunModel struct {
	ID       uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SyncType idx.SyncType   `gorm:"type:varchar(20);not null;uniqueIndex:ux_sync_runs_active_type,where:status = 'in_progress'"`
	Status   idx.SyncStatus `gorm:"type:varchar(20);not null;index"`
	Trigger  idx.Trigger    `gorm:"column:triggered_by;type:varchar(20);not null"`

	RecordsProcessed int `gorm:"not null"`
	RecordsCreated   int `gorm:"not null"`
	RecordsUpdated   int `gorm:"not null"`
	RecordsSkipped   int `gorm:"not null"`
	RecordsFailed    int `gorm:"not null"`
	PagesFetched     int `gorm:"not null"`

	RecordsReclassified int `gorm:"not null;default:0"`

	StartedAt    time.Time `gorm:"not null;index"`
	CompletedAt  *time.Time
	ErrorMessage *string `gorm:"type:text"`
	Note         *string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the persistence model to a domain SyncRun
func (m *SyncRunModel) ToDomain() *idx.SyncRun {
	run := &idx.SyncRun{
		ID:               m.ID,
		SyncType:         m.SyncType,
		Status:           m.Status,
		Trigger:          m.Trigger,
		RecordsProcessed: m.RecordsProcessed,
		RecordsCreated:   m.RecordsCreated,
		RecordsUpdated:   m.RecordsUpdated,
		RecordsSkipped:   m.RecordsSkipped,
		RecordsFailed:    m.RecordsFailed,
		PagesFetched:     m.PagesFetched,
		StartedAt:        m.StartedAt.UTC(),
		ErrorMessage:     m.ErrorMessage,
		Note:             m.Note,

		RecordsReclassified: m.RecordsReclassified,
	}
	if m.CompletedAt != nil {
		c := m.CompletedAt.UTC()
		run.CompletedAt = &c
	}
	return run
}

// FromDomain populates the persistence model from a domain SyncRun
func (m *SyncRunModel) FromDomain(r *idx.SyncRun) {
	m.ID = r.ID
	m.SyncType = r.SyncType
	m.Status = r.Status
	m.Trigger = r.Trigger
	m.RecordsProcessed = r.RecordsProcessed
	m.RecordsCreated = r.RecordsCreated
	m.RecordsUpdated = r.RecordsUpdated
	m.RecordsSkipped = r.RecordsSkipped
	m.RecordsFailed = r.RecordsFailed
	m.PagesFetched = r.PagesFetched
	m.RecordsReclassified = r.RecordsReclassified
	m.StartedAt = r.StartedAt.UTC()
	m.CompletedAt = r.CompletedAt
	m.ErrorMessage = r.ErrorMessage
	m.Note = r.Note
}

// CounterColumns is the column set written on progress updates
func (m *SyncRunModel) CounterColumns() map[string]any {
	return map[string]any{
		"records_processed": m.RecordsProcessed,
		"records_created":   m.RecordsCreated,
		"records_updated":   m.RecordsUpdated,
		"records_skipped":   m.RecordsSkipped,
		"records_failed":    m.RecordsFailed,
		"pages_fetched":     m.PagesFetched,

		"records_reclassified": m.RecordsReclassified,
	}
}
