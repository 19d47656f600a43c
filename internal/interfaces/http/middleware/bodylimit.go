package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/realty/backend/internal/interfaces/http/dto"
)

// BodyLimit caps request bodies at maxBytes; zero or less disables it.
// Declared lengths over the cap are refused before the handler runs. Bodies
// without a length are wrapped so reading past the cap fails, which
// handlers detect with IsBodyTooLarge.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			AbortBodyTooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// IsBodyTooLarge reports whether err came from reading past the BodyLimit cap
func IsBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// AbortBodyTooLarge ends the request with a 413 envelope
func AbortBodyTooLarge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeBodyTooLarge,
		"Request body exceeds maximum allowed size",
		GetRequestID(c),
	))
}
