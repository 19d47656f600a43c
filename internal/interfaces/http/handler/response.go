package handler

import "github.com/realty/backend/internal/interfaces/http/dto"

// APIResponse documents the envelope with a typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// HealthData is the /health payload. It is served bare, outside the
// envelope, so load balancers can match on status alone.
type HealthData struct {
	Status   string `json:"status" example:"healthy"`
	Time     string `json:"time" example:"2026-01-23T12:00:00Z"`
	Database string `json:"database" example:"ok"`
	Uptime   string `json:"uptime" example:"1h30m45s"`
	Version  string `json:"version,omitempty" example:"1.0.0"`
}
