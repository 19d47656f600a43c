package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/realty/backend/internal/infrastructure/logger"
)

// DBPinger checks database connectivity
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and database reachability
type HealthHandler struct {
	db        DBPinger
	version   string
	startTime time.Time
	now       func() time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db DBPinger, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		version:   version,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Health godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthData
// @Failure      503 {object} HealthData
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	now := h.now()
	data := HealthData{
		Status:   "healthy",
		Time:     now.UTC().Format(time.RFC3339),
		Database: "ok",
		Uptime:   now.Sub(h.startTime).Round(time.Second).String(),
		Version:  h.version,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
		data.Status = "unhealthy"
		data.Database = "error"
		c.JSON(http.StatusServiceUnavailable, data)
		return
	}

	c.JSON(http.StatusOK, data)
}
