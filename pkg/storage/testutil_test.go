package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/printshop/jobqueue/pkg/core"
)

// openTestDB opens a database for tests.
// When TEST_DATABASE_URL is set it connects to PostgreSQL; otherwise it
// opens a fresh in-memory SQLite instance pinned to a single connection.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err, "open postgres test db")

		sqlDB, err := db.DB()
		require.NoError(t, err, "get underlying sql.DB")
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(2)

		// Clean before AND after to ensure test isolation.
		cleanupPostgresDB(db)
		t.Cleanup(func() {
			cleanupPostgresDB(db)
			_ = sqlDB.Close()
		})
		return db
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open in-memory sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// openFileDB opens a WAL-mode SQLite file so several connections can race.
func openFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("TEST_DATABASE_URL") != "" {
		return openTestDB(t)
	}

	path := filepath.Join(t.TempDir(), "jobs.db")
	db, err := gorm.Open(sqlite.Open(path+"?_journal_mode=WAL&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open file sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func cleanupPostgresDB(db *gorm.DB) {
	db.Exec("DELETE FROM jobs")
}

// fakeClock is a manually advanced clock shared by the store under test.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// newTestStorage creates a fresh migrated storage driven by a fake clock.
func newTestStorage(t *testing.T) (*GormStorage, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := NewGormStorage(openTestDB(t), WithClock(clock.Now))
	require.NoError(t, s.Migrate(context.Background()), "migrate schema")
	return s, clock
}

// newTestJob builds a minimal valid Job for insertion in tests.
func newTestJob(queueName, actorID string) *core.Job {
	return &core.Job{
		QueueName: queueName,
		ActorID:   actorID,
		Priority:  core.DefaultPriority,
	}
}

// leaseJob enqueues-then-locks helper returning the post-lock version.
func leaseJob(t *testing.T, s *GormStorage, job *core.Job) int64 {
	t.Helper()
	ok, err := s.TryLock(context.Background(), job.ID, job.Version)
	require.NoError(t, err)
	require.True(t, ok, "lease should succeed")
	return job.Version + 1
}
