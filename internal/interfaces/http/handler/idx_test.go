package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	idxapp "github.com/realty/backend/internal/application/idx"
	"github.com/realty/backend/internal/domain/idx"
	"github.com/realty/backend/internal/interfaces/http/dto"
	"github.com/realty/backend/internal/interfaces/http/middleware"
)

type MockSyncController struct {
	mock.Mock
}

func (m *MockSyncController) StartSyncFromRequest(ctx context.Context, req idxapp.StartSyncRequest) (*idxapp.StartSyncResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idxapp.StartSyncResponse), args.Error(1)
}

func (m *MockSyncController) GetStatus(ctx context.Context) (*idxapp.StatusResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idxapp.StatusResponse), args.Error(1)
}

func (m *MockSyncController) GetRun(ctx context.Context, id string) (*idxapp.SyncRunResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idxapp.SyncRunResponse), args.Error(1)
}

func setupIDXRouter(syncs *MockSyncController) *gin.Engine {
	h := NewIDXHandler(syncs)
	router := gin.New()
	router.Use(middleware.RequestID())
	router.POST("/api/idx/sync", h.StartSync)
	router.GET("/api/idx/sync/:id", h.GetRun)
	router.GET("/api/idx/status", h.Status)
	return router
}

func postSync(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/idx/sync", strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIDXHandler_StartSyncAccepted(t *testing.T) {
	runID := uuid.New()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		body string
		want idxapp.StartSyncRequest
	}{
		{"explicit type", `{"type":"full"}`, idxapp.StartSyncRequest{Type: "full"}},
		{"empty body", "", idxapp.StartSyncRequest{}},
		{"empty object", `{}`, idxapp.StartSyncRequest{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncs := new(MockSyncController)
			syncs.On("StartSyncFromRequest", mock.Anything, tt.want).Return(&idxapp.StartSyncResponse{
				SyncRunID: runID,
				SyncType:  idx.SyncTypeFull,
				Status:    idx.SyncStatusInProgress,
				StartedAt: started,
			}, nil)

			w := postSync(setupIDXRouter(syncs), tt.body)

			require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
			var resp APIResponse[idxapp.StartSyncResponse]
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			assert.Equal(t, runID, resp.Data.SyncRunID)
			assert.Equal(t, idx.SyncStatusInProgress, resp.Data.Status)
			syncs.AssertExpectations(t)
		})
	}
}

func TestIDXHandler_StartSyncErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"already running", `{"type":"properties"}`, idx.ErrSyncAlreadyRunning, http.StatusConflict, dto.ErrCodeSyncAlreadyRunning},
		{"queue full", `{"type":"properties"}`, idx.ErrSyncNotAccepted, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable},
		{"unknown type", `{"type":"everything"}`, nil, http.StatusBadRequest, dto.ErrCodeValidation},
		{"malformed json", `{"type":`, nil, http.StatusBadRequest, dto.ErrCodeInvalidJSON},
		{"wrong json type", `{"type":7}`, nil, http.StatusBadRequest, dto.ErrCodeInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncs := new(MockSyncController)
			if tt.serviceErr != nil {
				syncs.On("StartSyncFromRequest", mock.Anything, mock.Anything).Return(nil, tt.serviceErr)
			}

			w := postSync(setupIDXRouter(syncs), tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			resp := decodeEnvelope(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.serviceErr == nil {
				syncs.AssertNotCalled(t, "StartSyncFromRequest", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestIDXHandler_Status(t *testing.T) {
	checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := "provider returned 503"
	last := idxapp.SyncRunResponse{
		ID:           uuid.New(),
		SyncType:     idx.SyncTypeProperties,
		Status:       idx.SyncStatusError,
		ErrorMessage: &msg,
	}

	syncs := new(MockSyncController)
	syncs.On("GetStatus", mock.Anything).Return(&idxapp.StatusResponse{
		LastSync:    &last,
		RecentSyncs: []idxapp.SyncRunResponse{last},
		ConnectionStatus: idxapp.ConnectionStatusResponse{
			Provider:      "mock",
			Reachable:     false,
			LastCheckedAt: checked,
			Message:       msg,
		},
	}, nil)

	w := doGet(setupIDXRouter(syncs), "/api/idx/status")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Nil(t, data["activeSync"])
	assert.Len(t, data["recentSyncs"], 1)
	lastSync := data["lastSync"].(map[string]any)
	assert.Equal(t, "error", lastSync["status"])
	assert.Equal(t, msg, lastSync["errorMessage"])
	conn := data["connectionStatus"].(map[string]any)
	assert.Equal(t, false, conn["reachable"])
	assert.Equal(t, "2026-03-01T12:00:00Z", conn["lastCheckedAt"])
}

func TestIDXHandler_GetRun(t *testing.T) {
	id := uuid.New()

	t.Run("found", func(t *testing.T) {
		syncs := new(MockSyncController)
		syncs.On("GetRun", mock.Anything, id.String()).Return(&idxapp.SyncRunResponse{ID: id, Status: idx.SyncStatusSuccess}, nil)

		w := doGet(setupIDXRouter(syncs), "/api/idx/sync/"+id.String())

		require.Equal(t, http.StatusOK, w.Code)
		var resp APIResponse[idxapp.SyncRunResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, id, resp.Data.ID)
	})

	t.Run("errors", func(t *testing.T) {
		syncs := new(MockSyncController)
		syncs.On("GetRun", mock.Anything, "bogus").Return(nil, idxapp.ErrInvalidRunID)
		syncs.On("GetRun", mock.Anything, id.String()).Return(nil, idx.ErrSyncRunNotFound)
		router := setupIDXRouter(syncs)

		w := doGet(router, "/api/idx/sync/bogus")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decodeEnvelope(t, w).Error.Code)

		w = doGet(router, "/api/idx/sync/"+id.String())
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decodeEnvelope(t, w).Error.Code)
	})
}
