package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/realty/backend/internal/infrastructure/auth"
	"github.com/realty/backend/internal/interfaces/http/dto"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	JWTSubjectKey = "jwt_subject"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// AdminTokenValidator checks a bearer token for admin access
type AdminTokenValidator interface {
	ValidateAdminToken(tokenString string) (*auth.Claims, error)
}

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	// Validator is required for token validation
	Validator AdminTokenValidator
	// Logger for middleware logging
	Logger *zap.Logger
}

// AdminAuth requires a valid admin bearer token
func AdminAuth(validator AdminTokenValidator, logger *zap.Logger) gin.HandlerFunc {
	return AdminAuthWithConfig(JWTMiddlewareConfig{Validator: validator, Logger: logger})
}

// AdminAuthWithConfig requires a valid admin bearer token
func AdminAuthWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
		if tokenString == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Missing token")
			return
		}

		claims, err := cfg.Validator.ValidateAdminToken(tokenString)
		if err != nil {
			handleAuthError(c, cfg, err, "Token validation failed")
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTSubjectKey, claims.Subject)
		cfg.Logger.Debug("admin authenticated",
			zap.String("subject", claims.Subject),
			zap.String("path", c.Request.URL.Path),
		)
		c.Next()
	}
}

func handleAuthError(c *gin.Context, cfg JWTMiddlewareConfig, err error, message string) {
	cfg.Logger.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	status := http.StatusUnauthorized
	code := dto.ErrCodeUnauthorized
	text := "Authentication required"

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, text = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		code, text = dto.ErrCodeTokenInvalid, "Token is not yet valid"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrMissingSubject):
		code, text = dto.ErrCodeTokenInvalid, "Invalid token"
	case errors.Is(err, auth.ErrInsufficientRole):
		status, code, text = http.StatusForbidden, dto.ErrCodeForbidden, "Admin role required"
	case errors.Is(err, auth.ErrSecretNotConfigured):
		status, code, text = http.StatusInternalServerError, dto.ErrCodeInternal, "Authentication is misconfigured"
	}

	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, text, GetRequestID(c)))
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetJWTSubject retrieves the token subject from context
func GetJWTSubject(c *gin.Context) string {
	return c.GetString(JWTSubjectKey)
}
