// Package testutil provides helpers shared by the integration tests: a
// fake listing provider, listing fixtures and envelope assertions.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// NewTestUUID derives a stable UUID from seed so fixtures can reference
// each other without storing generated ids
func NewTestUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("realty-test:"+seed))
}

// ContextWithTimeout is t.Context bounded by timeout
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireEventually polls condition every interval and stops the test if it
// is still false after timeout
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, condition, timeout, interval, msgAndArgs...)
}

// AssertNever polls condition for the whole duration and fails the test the
// first time it holds
func AssertNever(t *testing.T, condition func() bool, duration, interval time.Duration, msgAndArgs ...any) {
	t.Helper()
	assert.Never(t, condition, duration, interval, msgAndArgs...)
}
