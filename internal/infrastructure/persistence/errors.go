package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/realty/backend/internal/domain/listing"
	"gorm.io/gorm"
)

// isUniqueViolation matches duplicate key failures. TranslateError covers
// connections opened by NewDatabase; the message checks cover handles
// created without it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// storageError wraps a failed property write. When the store no longer
// answers a ping the failure is connectivity-level and the whole sync
// must stop.
func storageError(ctx context.Context, db *gorm.DB, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %v", listing.ErrStoreUnavailable, op, err)
	}
	if pingErr := ping(ctx, db); pingErr != nil {
		return fmt.Errorf("%w: %s: %v (ping: %v)", listing.ErrStoreUnavailable, op, err, pingErr)
	}
	return fmt.Errorf("%w: %s: %v", listing.ErrStorage, op, err)
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
