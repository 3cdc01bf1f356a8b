package core

import (
	"context"
	"time"
)

// Starter is the interface for starting workers.
type Starter interface {
	Start(ctx context.Context) error
}

// Store is the durable job table and the only coordination point between
// dispatchers. Every mutation except Enqueue is a single-row (or, for
// ReapExpiredLocks, set-based) write guarded by the version column.
type Store interface {
	// Migrate creates the jobs table and its indexes.
	Migrate(ctx context.Context) error

	// Enqueue inserts a new job. ID, Created, Updated and RunAt are filled in when empty.
	Enqueue(ctx context.Context, job *Job) error

	// FindReadyToRun returns up to limit eligible jobs ordered by
	// priority DESC, run_at ASC, created ASC.
	FindReadyToRun(ctx context.Context, limit int) ([]*Job, error)

	// TryLock leases the job if its version still equals expectedVersion.
	// A false result with a nil error is a lease conflict, not a failure.
	TryLock(ctx context.Context, jobID string, expectedVersion int64) (bool, error)

	// RecordSuccess completes a leased job. Returns ErrStaleVersion on version mismatch.
	RecordSuccess(ctx context.Context, jobID string, expectedVersion int64) error

	// RecordPermanentFailure completes a leased job with a failure reason.
	RecordPermanentFailure(ctx context.Context, jobID string, expectedVersion int64, reason string) error

	// RecordRetry releases a leased job for another attempt at nextRunAt.
	RecordRetry(ctx context.Context, jobID string, expectedVersion int64, errMsg string, nextRunAt time.Time) error

	// ReapExpiredLocks unlocks jobs leased longer than leaseTimeout ago and
	// counts the abandoned execution as an attempt.
	ReapExpiredLocks(ctx context.Context, leaseTimeout time.Duration) (int64, error)

	// Queries for operational tooling.
	GetJob(ctx context.Context, jobID string) (*Job, error)
	ListIncomplete(ctx context.Context, limit int) ([]*Job, error)
	ListFailed(ctx context.Context, limit int) ([]*Job, error)
}
