package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	idxapp "github.com/realty/backend/internal/application/idx"
	"github.com/realty/backend/internal/interfaces/http/dto"
	"github.com/realty/backend/internal/interfaces/http/middleware"
)

// SyncController is what the sync endpoints need from the sync service
type SyncController interface {
	StartSyncFromRequest(ctx context.Context, req idxapp.StartSyncRequest) (*idxapp.StartSyncResponse, error)
	GetStatus(ctx context.Context) (*idxapp.StatusResponse, error)
	GetRun(ctx context.Context, id string) (*idxapp.SyncRunResponse, error)
}

// IDXHandler triggers provider syncs and reports their progress
type IDXHandler struct {
	BaseHandler
	syncs SyncController
}

// NewIDXHandler creates a new IDXHandler
func NewIDXHandler(syncs SyncController) *IDXHandler {
	return &IDXHandler{syncs: syncs}
}

// StartSync godoc
// @Summary      Start a provider sync
// @Description  Queues a sync and returns immediately; poll /idx/status for progress. An empty body starts a properties sync.
// @Tags         idx
// @Accept       json
// @Produce      json
// @Param        request body idxapp.StartSyncRequest false "Sync type"
// @Success      202 {object} dto.Response{data=idxapp.StartSyncResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /idx/sync [post]
func (h *IDXHandler) StartSync(c *gin.Context) {
	var req idxapp.StartSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		if middleware.IsBodyTooLarge(err) {
			middleware.AbortBodyTooLarge(c)
			return
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
			return
		}
		middleware.HandleValidationError(c, err)
		return
	}

	resp, err := h.syncs.StartSyncFromRequest(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, resp)
}

// Status godoc
// @Summary      Sync status
// @Description  Latest run, recent history, the run in progress and provider reachability
// @Tags         idx
// @Produce      json
// @Success      200 {object} dto.Response{data=idxapp.StatusResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /idx/status [get]
func (h *IDXHandler) Status(c *gin.Context) {
	status, err := h.syncs.GetStatus(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// GetRun godoc
// @Summary      Get a sync run
// @Tags         idx
// @Produce      json
// @Param        id path string true "Sync run ID" format(uuid)
// @Success      200 {object} dto.Response{data=idxapp.SyncRunResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /idx/sync/{id} [get]
func (h *IDXHandler) GetRun(c *gin.Context) {
	run, err := h.syncs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, run)
}
