// Package integration runs the property store and the sync pipeline against
// a real PostgreSQL started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/realty/backend/internal/infrastructure/logger"
	"github.com/realty/backend/internal/infrastructure/migration"
)

const postgresImage = "postgres:16-alpine"

// dataTables are truncated between tests sharing a container, children first
var dataTables = []string{"sync_runs", "properties"}

var shared struct {
	mu        sync.Mutex
	container *tcpostgres.PostgresContainer
	dsn       string
}

// TestDB is a migrated database reachable through GORM and database/sql
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
	t     *testing.T
}

// NewTestDB starts a private container for t. It is terminated when t ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	container, dsn := startPostgres(t, "realty_test")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})
	migrateUp(t, dsn)
	return openTestDB(t, dsn)
}

// NewSharedTestDB connects to the package-wide container, starting and
// migrating it on first use. Callers own their data; CleanTables resets it.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	shared.mu.Lock()
	if shared.container == nil {
		shared.container, shared.dsn = startPostgres(t, "realty_shared_test")
		migrateUp(t, shared.dsn)
	}
	dsn := shared.dsn
	shared.mu.Unlock()

	return openTestDB(t, dsn)
}

// CleanupSharedContainer stops the shared container; call it from TestMain
func CleanupSharedContainer() {
	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = shared.container.Terminate(ctx)
	shared.container, shared.dsn = nil, ""
}

// CleanTables empties every data table
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()
	stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(dataTables, ", "))
	require.NoError(tdb.t, tdb.DB.Exec(stmt).Error, "truncate data tables")
}

func startPostgres(t *testing.T, database string) (*tcpostgres.PostgresContainer, string) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase(database),
		tcpostgres.WithUsername("realty"),
		tcpostgres.WithPassword("realty"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "postgres connection string")
	return container, dsn
}

// migrateUp applies migrations/ over a dedicated connection; the migrator
// closes it on Close
func migrateUp(t *testing.T, dsn string) {
	t.Helper()

	dir := migrationsDir(t)
	m, err := migration.NewFromURL(dsn, dir, zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel)))
	require.NoError(t, err, "open migrator")
	defer func() { _ = m.Close() }()
	require.NoError(t, m.Up(), "apply migrations from %s", dir)
}

// openTestDB connects through the application's GORM logger. TEST_DB_DEBUG
// turns on statement logging.
func openTestDB(t *testing.T, dsn string) *TestDB {
	t.Helper()

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLogger(zaptest.NewLogger(t), level),
	})
	require.NoError(t, err, "connect to postgres")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &TestDB{DB: db, SqlDB: sqlDB, DSN: dsn, t: t}
}

// migrationsDir finds migrations/ at the module root relative to this file
func migrationsDir(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok, "locate test source")
	for dir := filepath.Dir(file); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	t.Fatal("migrations directory not found")
	return ""
}
