package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realty/backend/internal/infrastructure/config"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Enabled:   true,
		Secret:    "test-secret-key-at-least-32-chars",
		Issuer:    "realty-test",
		AdminRole: "admin",
	})
}

func TestNewJWTService(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "s", Issuer: "i"})
	assert.Equal(t, []byte("s"), svc.secret)
	assert.Equal(t, "i", svc.issuer)
	assert.Equal(t, "admin", svc.AdminRole(), "admin is the default role")
}

func TestValidateAdminToken(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.IssueToken("ops@example.com", []string{"viewer", "admin"}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, "realty-test", claims.Issuer)
	assert.True(t, claims.HasRole("viewer"))
}

func TestValidateAdminToken_MissingRole(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.IssueToken("agent@example.com", []string{"viewer"}, time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.NoError(t, err)

	_, err = svc.ValidateAdminToken(token)
	assert.ErrorIs(t, err, ErrInsufficientRole)
}

func TestValidateToken_Failures(t *testing.T) {
	svc := newTestJWTService()

	t.Run("expired", func(t *testing.T) {
		token, err := svc.IssueToken("u", []string{"admin"}, -time.Minute)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		future := *svc
		future.now = func() time.Time { return time.Now().Add(time.Hour) }
		token, err := future.IssueToken("u", []string{"admin"}, 2*time.Hour)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenNotYetValid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("different secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "another-secret-key-of-some-length", Issuer: "realty-test"})
		token, err := other.IssueToken("u", []string{"admin"}, time.Hour)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "someone-else"})
		token, err := other.IssueToken("u", []string{"admin"}, time.Hour)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := svc.IssueToken("", []string{"admin"}, time.Hour)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrMissingSubject)
	})

	t.Run("non-HMAC algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "realty-test"},
			Roles:            []string{"admin"},
		})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestSecretNotConfigured(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{})

	_, err := svc.IssueToken("u", nil, time.Hour)
	assert.ErrorIs(t, err, ErrSecretNotConfigured)

	_, err = svc.ValidateToken("x")
	assert.ErrorIs(t, err, ErrSecretNotConfigured)
}
