package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printshop/jobqueue/pkg/core"
	"github.com/printshop/jobqueue/pkg/security"
)

// GormStorage implements core.Store using GORM.
//
// All writes after Enqueue are compare-and-set updates on the version column;
// there is no transaction spanning lease acquisition and handler execution.
type GormStorage struct {
	db  *gorm.DB
	now func() time.Time
}

var _ core.Store = (*GormStorage)(nil)

// Option configures a GormStorage.
type Option func(*GormStorage)

// WithClock replaces the wall clock used for every timestamp the store writes
// or compares against.
func WithClock(now func() time.Time) Option {
	return func(s *GormStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB, opts ...Option) *GormStorage {
	s := &GormStorage{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *gorm.DB.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// WithDB returns a storage bound to db, typically a transaction opened by the
// caller, so a job can be enqueued atomically with the caller's own writes.
func (s *GormStorage) WithDB(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db, now: s.now}
}

// IsSQLite reports whether the storage runs on the SQLite dialect.
func (s *GormStorage) IsSQLite() bool {
	if s.db == nil || s.db.Dialector == nil {
		return false
	}
	return s.db.Dialector.Name() == "sqlite"
}

func (s *GormStorage) clock() time.Time {
	return s.now().UTC()
}

// Migrate creates the jobs table and its indexes.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.Job{})
}

// Enqueue inserts a job in the PENDING state. No deduplication is performed.
func (s *GormStorage) Enqueue(ctx context.Context, job *core.Job) error {
	now := s.clock()

	if job.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		job.ID = id.String()
	}
	if job.RunAt.IsZero() {
		job.RunAt = now
	} else {
		job.RunAt = job.RunAt.UTC()
	}

	job.Attempts = 0
	job.Locked = false
	job.LockedAt = nil
	job.Complete = false
	job.CompletedAt = nil
	job.CompletedWithFailure = false
	job.FailureReason = ""
	job.FailedAt = nil
	job.LastError = ""
	job.Version = 0
	job.Created = now
	job.Updated = now

	return s.db.WithContext(ctx).Create(job).Error
}

// FindReadyToRun returns eligible jobs ordered by priority DESC, run_at ASC,
// created ASC. Ids are time-ordered UUIDs, so id ASC finishes the tie-break in
// insertion order when two rows share a created timestamp.
func (s *GormStorage) FindReadyToRun(ctx context.Context, limit int) ([]*core.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	var jobs []*core.Job
	err := s.db.WithContext(ctx).
		Where("complete = ? AND locked = ?", false, false).
		Where("run_at <= ?", s.clock()).
		Order("priority DESC, run_at ASC, created ASC, id ASC").
		Limit(limit).
		Find(&jobs).Error

	return jobs, err
}

// TryLock leases the job if the stored version still equals expectedVersion.
func (s *GormStorage) TryLock(ctx context.Context, jobID string, expectedVersion int64) (bool, error) {
	now := s.clock()

	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND version = ?", jobID, expectedVersion).
		Where("locked = ? AND complete = ?", false, false).
		Updates(map[string]any{
			"locked":    true,
			"locked_at": now,
			"version":   gorm.Expr("version + 1"),
			"updated":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RecordSuccess moves a leased job to COMPLETE_SUCCESS.
func (s *GormStorage) RecordSuccess(ctx context.Context, jobID string, expectedVersion int64) error {
	now := s.clock()

	return s.updateLeased(ctx, jobID, expectedVersion, map[string]any{
		"complete":               true,
		"completed_at":           now,
		"completed_with_failure": false,
		"locked":                 false,
		"attempts":               gorm.Expr("attempts + 1"),
		"version":                gorm.Expr("version + 1"),
		"updated":                now,
	})
}

// RecordPermanentFailure moves a leased job to COMPLETE_FAILURE.
// The reason is sanitized before storage.
func (s *GormStorage) RecordPermanentFailure(ctx context.Context, jobID string, expectedVersion int64, reason string) error {
	now := s.clock()

	reason = security.SanitizeErrorMessage(reason)
	if reason == "" {
		reason = "permanent failure"
	}

	return s.updateLeased(ctx, jobID, expectedVersion, map[string]any{
		"complete":               true,
		"completed_at":           now,
		"completed_with_failure": true,
		"failure_reason":         reason,
		"failed_at":              now,
		"locked":                 false,
		"attempts":               gorm.Expr("attempts + 1"),
		"version":                gorm.Expr("version + 1"),
		"updated":                now,
	})
}

// RecordRetry releases a leased job back to PENDING at nextRunAt.
// failed_at is left untouched; it is only set on permanent failure.
func (s *GormStorage) RecordRetry(ctx context.Context, jobID string, expectedVersion int64, errMsg string, nextRunAt time.Time) error {
	return s.updateLeased(ctx, jobID, expectedVersion, map[string]any{
		"locked":     false,
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": security.SanitizeErrorMessage(errMsg),
		"run_at":     nextRunAt.UTC(),
		"version":    gorm.Expr("version + 1"),
		"updated":    s.clock(),
	})
}

func (s *GormStorage) updateLeased(ctx context.Context, jobID string, expectedVersion int64, updates map[string]any) error {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND version = ?", jobID, expectedVersion).
		Where("locked = ? AND complete = ?", true, false).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrStaleVersion
	}
	return nil
}

// ReapExpiredLocks unlocks every job whose lease is older than leaseTimeout and
// counts the abandoned execution as an attempt. Running it again with nothing
// newly expired matches no rows.
func (s *GormStorage) ReapExpiredLocks(ctx context.Context, leaseTimeout time.Duration) (int64, error) {
	now := s.clock()
	cutoff := now.Add(-leaseTimeout)

	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("locked = ? AND complete = ?", true, false).
		Where("locked_at < ?", cutoff).
		Updates(map[string]any{
			"locked":   false,
			"attempts": gorm.Expr("attempts + 1"),
			"version":  gorm.Expr("version + 1"),
			"updated":  now,
		})
	return result.RowsAffected, result.Error
}

// GetJob retrieves a job by ID.
func (s *GormStorage) GetJob(ctx context.Context, jobID string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListIncomplete returns jobs that have not reached a terminal state, oldest first.
func (s *GormStorage) ListIncomplete(ctx context.Context, limit int) ([]*core.Job, error) {
	limit = listLimit(limit)

	var jobs []*core.Job
	err := s.db.WithContext(ctx).
		Where("complete = ?", false).
		Order("created ASC, id ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// ListFailed returns permanently failed jobs, most recent failure first.
func (s *GormStorage) ListFailed(ctx context.Context, limit int) ([]*core.Job, error) {
	limit = listLimit(limit)

	var jobs []*core.Job
	err := s.db.WithContext(ctx).
		Where("failed_at IS NOT NULL").
		Order("failed_at DESC, id ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// DefaultListLimit caps the inspection queries when the caller passes no limit.
const DefaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// QueueStat counts the jobs of one queue by state.
type QueueStat struct {
	QueueName string `json:"queue"`
	Pending   int64  `json:"pending"`
	Leased    int64  `json:"leased"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}

// QueueStats returns per-queue job counts ordered by queue name. Pending
// includes jobs whose run_at is still in the future.
func (s *GormStorage) QueueStats(ctx context.Context) ([]QueueStat, error) {
	var stats []QueueStat
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Select(`queue_name,
			SUM(CASE WHEN complete = ? AND locked = ? THEN 1 ELSE 0 END) AS pending,
			SUM(CASE WHEN complete = ? AND locked = ? THEN 1 ELSE 0 END) AS leased,
			SUM(CASE WHEN complete = ? AND completed_with_failure = ? THEN 1 ELSE 0 END) AS succeeded,
			SUM(CASE WHEN complete = ? AND completed_with_failure = ? THEN 1 ELSE 0 END) AS failed`,
			false, false,
			false, true,
			true, false,
			true, true).
		Group("queue_name").
		Order("queue_name ASC").
		Scan(&stats).Error
	return stats, err
}
