package idx

import (
	"time"

	"github.com/google/uuid"

	"github.com/realty/backend/internal/domain/idx"
)

// StartSyncRequest is the body of POST /api/idx/sync
type StartSyncRequest struct {
	Type string `json:"type" binding:"omitempty,oneof=properties agents full"`
}

// StartSyncResponse acknowledges an accepted run
type StartSyncResponse struct {
	SyncRunID uuid.UUID      `json:"syncRunId"`
	SyncType  idx.SyncType   `json:"syncType"`
	Status    idx.SyncStatus `json:"status"`
	StartedAt time.Time      `json:"startedAt"`
}

// SyncRunResponse is a SyncRun as the admin panel polls it
type SyncRunResponse struct {
	ID               uuid.UUID      `json:"id"`
	SyncType         idx.SyncType   `json:"syncType"`
	Status           idx.SyncStatus `json:"status"`
	TriggeredBy      idx.Trigger    `json:"triggeredBy"`
	RecordsProcessed int            `json:"recordsProcessed"`
	RecordsCreated   int            `json:"recordsCreated"`
	RecordsUpdated   int            `json:"recordsUpdated"`
	RecordsUnchanged int            `json:"recordsUnchanged"`
	RecordsSkipped   int            `json:"recordsSkipped"`
	RecordsFailed    int            `json:"recordsFailed"`
	PagesFetched     int            `json:"pagesFetched"`
	StartedAt        time.Time      `json:"startedAt"`
	CompletedAt      *time.Time     `json:"completedAt"`
	DurationSeconds  float64        `json:"durationSeconds"`
	ErrorMessage     *string        `json:"errorMessage"`
	Note             *string        `json:"note"`

	RecordsReclassified int `json:"recordsReclassified"`
}

// ConnectionStatusResponse is the provider probe result
type ConnectionStatusResponse struct {
	Provider      string    `json:"provider"`
	Reachable     bool      `json:"reachable"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
	LatencyMillis int64     `json:"latencyMs"`
	Message       string    `json:"message"`
}

// StatusResponse is the body of GET /api/idx/status
type StatusResponse struct {
	LastSync         *SyncRunResponse         `json:"lastSync"`
	RecentSyncs      []SyncRunResponse        `json:"recentSyncs"`
	ActiveSync       *SyncRunResponse         `json:"activeSync"`
	ConnectionStatus ConnectionStatusResponse `json:"connectionStatus"`
}

// ToSyncRunResponse converts a domain run; now measures runs still in progress
func ToSyncRunResponse(run *idx.SyncRun, now time.Time) SyncRunResponse {
	return SyncRunResponse{
		ID:               run.ID,
		SyncType:         run.SyncType,
		Status:           run.Status,
		TriggeredBy:      run.Trigger,
		RecordsProcessed: run.RecordsProcessed,
		RecordsCreated:   run.RecordsCreated,
		RecordsUpdated:   run.RecordsUpdated,
		RecordsUnchanged: run.RecordsUnchanged(),
		RecordsSkipped:   run.RecordsSkipped,
		RecordsFailed:    run.RecordsFailed,
		PagesFetched:     run.PagesFetched,
		StartedAt:        run.StartedAt,
		CompletedAt:      run.CompletedAt,
		DurationSeconds:  run.Duration(now).Seconds(),
		ErrorMessage:     run.ErrorMessage,
		Note:             run.Note,

		RecordsReclassified: run.RecordsReclassified,
	}
}

func toSyncRunResponsePtr(run *idx.SyncRun, now time.Time) *SyncRunResponse {
	if run == nil {
		return nil
	}
	r := ToSyncRunResponse(run, now)
	return &r
}

func toConnectionStatusResponse(s idx.ConnectionStatus) ConnectionStatusResponse {
	return ConnectionStatusResponse{
		Provider:      s.Provider,
		Reachable:     s.Reachable,
		LastCheckedAt: s.LastCheckedAt,
		LatencyMillis: s.Latency.Milliseconds(),
		Message:       s.Message,
	}
}
