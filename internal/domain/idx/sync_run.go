package idx

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SyncType selects what a run refreshes
type SyncType string

const (
	SyncTypeProperties SyncType = "properties"
	SyncTypeAgents     SyncType = "agents"
	SyncTypeFull       SyncType = "full"
)

// IsValid checks if the sync type is valid
func (t SyncType) IsValid() bool {
	switch t {
	case SyncTypeProperties, SyncTypeAgents, SyncTypeFull:
		return true
	}
	return false
}

// ParseSyncType parses a user supplied sync type; empty means properties
func ParseSyncType(s string) (SyncType, error) {
	t := SyncType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return SyncTypeProperties, nil
	}
	if !t.IsValid() {
		return "", ErrInvalidSyncType
	}
	return t, nil
}

// CreatesListings reports whether the run may insert new properties
func (t SyncType) CreatesListings() bool {
	return t != SyncTypeAgents
}

// SyncStatus is the lifecycle state of a run
type SyncStatus string

const (
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusError      SyncStatus = "error"
)

// IsTerminal returns true for success and error
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusSuccess || s == SyncStatusError
}

// Trigger records who started the run
type Trigger string

const (
	TriggerAPI  Trigger = "api"
	TriggerCron Trigger = "cron"
)

// SyncRun is the audit record of one sync
type SyncRun struct {
	ID       uuid.UUID
	SyncType SyncType
	Status   SyncStatus
	Trigger  Trigger

	RecordsProcessed int
	RecordsCreated   int
	RecordsUpdated   int
	RecordsSkipped   int
	RecordsFailed    int
	PagesFetched     int

	// RecordsReclassified is the part of RecordsUnchanged whose featured or
	// luxury flags were rewritten
	RecordsReclassified int

	StartedAt    time.Time
	CompletedAt  *time.Time
	ErrorMessage *string

	// Note is an informational message on a successful run
	Note *string
}

// NewSyncRun creates a run in progress
func NewSyncRun(syncType SyncType, trigger Trigger, now time.Time) (*SyncRun, error) {
	if !syncType.IsValid() {
		return nil, ErrInvalidSyncType
	}
	if trigger == "" {
		trigger = TriggerAPI
	}
	return &SyncRun{
		ID:        uuid.New(),
		SyncType:  syncType,
		Status:    SyncStatusInProgress,
		Trigger:   trigger,
		StartedAt: now.UTC().Truncate(time.Microsecond),
	}, nil
}

// RecordOutcome is what happened to one provider record
type RecordOutcome int

const (
	OutcomeCreated RecordOutcome = iota
	OutcomeUpdated
	OutcomeUnchanged
	OutcomeReclassified
	OutcomeSkipped
	OutcomeFailed
)

// Record tallies one examined record
func (r *SyncRun) Record(outcome RecordOutcome) {
	r.RecordsProcessed++
	switch outcome {
	case OutcomeCreated:
		r.RecordsCreated++
	case OutcomeUpdated:
		r.RecordsUpdated++
	case OutcomeSkipped:
		r.RecordsSkipped++
	case OutcomeFailed:
		r.RecordsFailed++
	case OutcomeReclassified:
		r.RecordsReclassified++
	}
}

// RecordsUnchanged is the number of records that matched the stored copy
func (r *SyncRun) RecordsUnchanged() int {
	return r.RecordsProcessed - r.RecordsCreated - r.RecordsUpdated - r.RecordsSkipped - r.RecordsFailed
}

// Changed reports whether the run altered any stored listing
func (r *SyncRun) Changed() bool {
	return r.RecordsCreated > 0 || r.RecordsUpdated > 0 || r.RecordsReclassified > 0
}

// Succeed moves the run to success. A non-empty note, e.g. that the page
// cap stopped the run, is kept in Note; ErrorMessage stays nil.
func (r *SyncRun) Succeed(now time.Time, note string) error {
	if r.Status.IsTerminal() {
		return ErrSyncRunAlreadyFinished
	}
	completed := now.UTC().Truncate(time.Microsecond)
	r.Status = SyncStatusSuccess
	r.CompletedAt = &completed
	if note != "" {
		r.Note = &note
	}
	return nil
}

// Fail moves the run to error with a readable cause
func (r *SyncRun) Fail(now time.Time, cause error) error {
	if r.Status.IsTerminal() {
		return ErrSyncRunAlreadyFinished
	}
	msg := "sync failed"
	if cause != nil {
		msg = cause.Error()
	}
	completed := now.UTC().Truncate(time.Microsecond)
	r.Status = SyncStatusError
	r.CompletedAt = &completed
	r.ErrorMessage = &msg
	return nil
}

// Duration is how long the run took, or has taken so far
func (r *SyncRun) Duration(now time.Time) time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// String is used in log lines
func (r *SyncRun) String() string {
	return fmt.Sprintf("sync %s (%s, %s)", r.ID, r.SyncType, r.Status)
}
