package persistence

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/realty/backend/internal/domain/listing"
	"github.com/realty/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupSQLiteDB opens a migrated in-memory database
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to ":memory:" is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

// setupMockDB opens a postgres dialect GORM handle over sqlmock
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

var testNormalizer = listing.NewNormalizer(listing.NormalizerConfig{
	Thresholds:   listing.DefaultThresholds(),
	DefaultState: "NE",
})

// newTestProperty normalizes a minimal provider record
func newTestProperty(t *testing.T, key string, price int64, beds int, modified *time.Time) *listing.Property {
	t.Helper()
	raw := listing.RawExternalProperty{
		MLSID:     listing.FlexString(key),
		Address:   fmt.Sprintf("%s Main St, Omaha, NE 68104", key),
		ListPrice: listing.NewFlexDecimal(decimal.NewFromInt(price)),
		Beds:      listing.NewFlexDecimal(decimal.NewFromInt(int64(beds))),
		Images:    listing.FlexStrings{"https://img.example/" + key + ".jpg"},
	}
	if modified != nil {
		raw.ModificationTimestamp = listing.FlexString(modified.UTC().Format(time.RFC3339))
	}
	p, err := testNormalizer.Normalize(raw)
	require.NoError(t, err)
	return p
}

func ptr[T any](v T) *T {
	return &v
}
