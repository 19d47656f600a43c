package dto

import "net/http"

// API error codes returned in ErrorInfo.Code, shaped ERR_<CATEGORY>[_<DETAIL>]
const (
	ErrCodeUnknown            = "ERR_UNKNOWN"
	ErrCodeInternal           = "ERR_INTERNAL"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"

	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeBodyTooLarge = "ERR_BODY_TOO_LARGE"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"

	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeConflict           = "ERR_CONFLICT"
	ErrCodeSyncAlreadyRunning = "ERR_SYNC_ALREADY_RUNNING"
	ErrCodeInvalidState       = "ERR_INVALID_STATE"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

var codeStatus = map[string]int{
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeBodyTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeSyncAlreadyRunning: http.StatusConflict,
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus is the status for an API error code, 500 when unmapped
func GetHTTPStatus(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodes translates shared.DomainError codes raised by the listing and
// idx packages
var domainCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"PROPERTY_NOT_FOUND":   ErrCodeNotFound,
	"SYNC_RUN_NOT_FOUND":   ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeConflict,
	"SYNC_RUN_FINISHED":    ErrCodeConflict,
	"SYNC_ALREADY_RUNNING": ErrCodeSyncAlreadyRunning,
	"INVALID_INPUT":        ErrCodeValidation,
	"INVALID_FILTER":       ErrCodeValidation,
	"INVALID_SYNC_TYPE":    ErrCodeValidation,
	"INVALID_SYNC_RUN_ID":  ErrCodeValidation,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"SYNC_NOT_ACCEPTED":    ErrCodeServiceUnavailable,
}

// NormalizeErrorCode maps a domain code to its API code. Codes already in
// API form, and codes nobody mapped, pass through unchanged.
func NormalizeErrorCode(code string) string {
	if api, ok := domainCodes[code]; ok {
		return api
	}
	return code
}
