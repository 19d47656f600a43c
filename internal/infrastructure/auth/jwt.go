// Package auth validates the admin bearer tokens that guard sync operations.
// Tokens are issued elsewhere; this service only needs the shared secret.
package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/realty/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrTokenNotYetValid    = errors.New("token is not yet valid")
	ErrInvalidClaims       = errors.New("invalid token claims")
	ErrMissingSubject      = errors.New("missing subject in claims")
	ErrInsufficientRole    = errors.New("token lacks the required role")
	ErrSecretNotConfigured = errors.New("jwt secret is not configured")
)

// Claims represents custom JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// HasRole checks if the claims carry role
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// JWTService handles JWT token operations
type JWTService struct {
	secret    []byte
	issuer    string
	adminRole string
	now       func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	adminRole := cfg.AdminRole
	if adminRole == "" {
		adminRole = "admin"
	}
	return &JWTService{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		adminRole: adminRole,
		now:       time.Now,
	}
}

// AdminRole is the role ValidateAdminToken requires
func (s *JWTService) AdminRole() string {
	return s.adminRole
}

// IssueToken signs an HS256 token. It exists for operators' tooling and
// tests; the API never issues tokens.
func (s *JWTService) IssueToken(subject string, roles []string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSecretNotConfigured
	}
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken verifies signature, time window and issuer
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrSecretNotConfigured
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrInvalidClaims
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// ValidateAdminToken validates the token and requires the admin role
func (s *JWTService) ValidateAdminToken(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.HasRole(s.adminRole) {
		return nil, ErrInsufficientRole
	}
	return claims, nil
}
