package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/printshop/jobqueue/pkg/core"
	"github.com/printshop/jobqueue/pkg/security"
)

// ──────────────────────────────────────────────────────────────────────────────
// Constructor / detection
// ──────────────────────────────────────────────────────────────────────────────

func TestNewGormStorage_IsSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s := NewGormStorage(db)
	assert.True(t, s.IsSQLite(), "should detect SQLite dialect")
	assert.Same(t, db, s.DB(), "DB() should return the same *gorm.DB passed in")
}

func TestNewGormStorage_NilDB(t *testing.T) {
	s := NewGormStorage(nil)
	assert.False(t, s.IsSQLite(), "nil db should not claim SQLite")
}

func TestWithDB_SharesClock(t *testing.T) {
	s, clock := newTestStorage(t)
	tx := s.WithDB(s.DB().Session(&gorm.Session{}))

	job := newTestJob("OrderEmailJobHandler", "order-1")
	require.NoError(t, tx.Enqueue(context.Background(), job))
	assert.True(t, job.Created.Equal(clock.Now()))
}

func TestWithDB_RolledBackTransactionDropsJob(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	var jobID string
	err := s.DB().Transaction(func(tx *gorm.DB) error {
		job := newTestJob("OrderEmailJobHandler", "order-1")
		if err := s.WithDB(tx).Enqueue(ctx, job); err != nil {
			return err
		}
		jobID = job.ID
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = s.GetJob(ctx, jobID)
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Enqueue
// ──────────────────────────────────────────────────────────────────────────────

func TestEnqueue_CreatesPendingJob(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := &core.Job{
		QueueName: "OrderEmailJobHandler",
		ActorID:   "order-42",
		Priority:  7,
	}
	require.NoError(t, s.Enqueue(ctx, job))

	assert.NotEmpty(t, job.ID, "ID should be auto-generated")

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatePending, got.State())
	assert.Equal(t, "OrderEmailJobHandler", got.QueueName)
	assert.Equal(t, "order-42", got.ActorID)
	assert.Equal(t, 7, got.Priority)
	assert.Equal(t, 0, got.Attempts)
	assert.Equal(t, int64(0), got.Version)
	assert.False(t, got.Locked)
	assert.False(t, got.Complete)
	assert.Nil(t, got.LockedAt)
	assert.Nil(t, got.FailedAt)
	assert.True(t, got.RunAt.Equal(clock.Now()), "run_at defaults to now")
	assert.True(t, got.Created.Equal(clock.Now()))
}

func TestEnqueue_ResetsCallerSuppliedState(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	job := newTestJob("q", "a")
	job.Attempts = 9
	job.Locked = true
	job.Complete = true
	job.Version = 12
	require.NoError(t, s.Enqueue(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatePending, got.State())
	assert.Equal(t, 0, got.Attempts)
	assert.Equal(t, int64(0), got.Version)
}

func TestEnqueue_PreservesExistingID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	job := newTestJob("q", "a")
	job.ID = "my-custom-id"
	require.NoError(t, s.Enqueue(ctx, job))
	assert.Equal(t, "my-custom-id", job.ID)
}

func TestEnqueue_NoDeduplication(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	first := newTestJob("OrderEmailJobHandler", "order-1")
	second := newTestJob("OrderEmailJobHandler", "order-1")
	require.NoError(t, s.Enqueue(ctx, first))
	require.NoError(t, s.Enqueue(ctx, second))

	assert.NotEqual(t, first.ID, second.ID)
	jobs, err := s.ListIncomplete(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

// ──────────────────────────────────────────────────────────────────────────────
// FindReadyToRun
// ──────────────────────────────────────────────────────────────────────────────

func TestFindReadyToRun_OrdersByPriorityThenRunAtThenCreated(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)
	base := clock.Now()

	enqueue := func(actor string, priority int, runAt time.Time) {
		job := newTestJob("q", actor)
		job.Priority = priority
		job.RunAt = runAt
		require.NoError(t, s.Enqueue(ctx, job))
		clock.Advance(time.Second)
	}

	enqueue("low", 1, base.Add(-time.Hour))
	enqueue("high-late", 9, base.Add(-time.Minute))
	enqueue("high-early", 9, base.Add(-time.Hour))
	enqueue("mid-a", 5, base.Add(-time.Hour))
	enqueue("mid-b", 5, base.Add(-time.Hour))

	jobs, err := s.FindReadyToRun(ctx, 10)
	require.NoError(t, err)

	var actors []string
	for _, j := range jobs {
		actors = append(actors, j.ActorID)
	}
	assert.Equal(t, []string{"high-early", "high-late", "mid-a", "mid-b", "low"}, actors)
}

func TestFindReadyToRun_SameTimestampKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Enqueue(ctx, newTestJob("q", fmt.Sprintf("actor-%d", i))))
	}

	jobs, err := s.FindReadyToRun(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 5)
	for i, j := range jobs {
		assert.Equal(t, fmt.Sprintf("actor-%d", i), j.ActorID)
	}
}

func TestFindReadyToRun_ExcludesFutureRunAt(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := newTestJob("q", "a")
	job.RunAt = clock.Now().Add(time.Hour)
	require.NoError(t, s.Enqueue(ctx, job))

	jobs, err := s.FindReadyToRun(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	clock.Advance(time.Hour)
	jobs, err = s.FindReadyToRun(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestFindReadyToRun_ExcludesLockedAndTerminal(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	leased := newTestJob("q", "leased")
	done := newTestJob("q", "done")
	failed := newTestJob("q", "failed")
	ready := newTestJob("q", "ready")
	for _, j := range []*core.Job{leased, done, failed, ready} {
		require.NoError(t, s.Enqueue(ctx, j))
	}

	leaseJob(t, s, leased)
	require.NoError(t, s.RecordSuccess(ctx, done.ID, leaseJob(t, s, done)))
	require.NoError(t, s.RecordPermanentFailure(ctx, failed.ID, leaseJob(t, s, failed), "bad input"))

	jobs, err := s.FindReadyToRun(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, ready.ID, jobs[0].ID)
}

func TestFindReadyToRun_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Enqueue(ctx, newTestJob("q", "a")))
	}

	jobs, err := s.FindReadyToRun(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = s.FindReadyToRun(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs, "zero limit selects nothing")
}

func TestFindReadyToRun_EmptyTable(t *testing.T) {
	s, _ := newTestStorage(t)

	jobs, err := s.FindReadyToRun(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

// ──────────────────────────────────────────────────────────────────────────────
// TryLock
// ──────────────────────────────────────────────────────────────────────────────

func TestTryLock_LeasesAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))

	clock.Advance(time.Second)
	ok, err := s.TryLock(ctx, job.ID, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateLeased, got.State())
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, 0, got.Attempts, "leasing does not count an attempt")
	require.NotNil(t, got.LockedAt)
	assert.True(t, got.LockedAt.Equal(clock.Now()))
}

func TestTryLock_StaleVersionReturnsFalse(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))

	ok, err := s.TryLock(ctx, job.ID, 5)
	require.NoError(t, err, "a conflict is not an error")
	assert.False(t, ok)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatePending, got.State(), "row must be unchanged")
	assert.Equal(t, int64(0), got.Version)
}

func TestTryLock_SecondLockWithSameVersionFails(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))

	ok, err := s.TryLock(ctx, job.ID, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.TryLock(ctx, job.ID, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTryLock_LeasedJobCannotBeRelockedAtCurrentVersion(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	version := leaseJob(t, s, job)

	ok, err := s.TryLock(ctx, job.ID, version)
	require.NoError(t, err)
	assert.False(t, ok, "a leased job is not eligible")
}

func TestTryLock_UnknownJob(t *testing.T) {
	s, _ := newTestStorage(t)

	ok, err := s.TryLock(context.Background(), "missing", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTryLock_ConcurrentExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewGormStorage(openFileDB(t))
	require.NoError(t, s.Migrate(ctx))

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))

	const contenders = 8
	var (
		wins  atomic.Int32
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := s.TryLock(ctx, job.ID, 0)
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}

// ──────────────────────────────────────────────────────────────────────────────
// Outcome writes
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordSuccess_CompletesJob(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	version := leaseJob(t, s, job)

	clock.Advance(2 * time.Second)
	require.NoError(t, s.RecordSuccess(ctx, job.ID, version))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleteSuccess, got.State())
	assert.False(t, got.Locked)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, int64(2), got.Version)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(clock.Now()))
	assert.Nil(t, got.FailedAt)
}

func TestRecordSuccess_StaleVersion(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	version := leaseJob(t, s, job)

	err := s.RecordSuccess(ctx, job.ID, version-1)
	assert.ErrorIs(t, err, core.ErrStaleVersion)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateLeased, got.State(), "row must be unchanged")
}

func TestRecordSuccess_RequiresLease(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))

	err := s.RecordSuccess(ctx, job.ID, 0)
	assert.ErrorIs(t, err, core.ErrStaleVersion)
}

func TestRecordSuccess_TerminalIsAbsorbing(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	version := leaseJob(t, s, job)
	require.NoError(t, s.RecordSuccess(ctx, job.ID, version))

	assert.ErrorIs(t, s.RecordSuccess(ctx, job.ID, version+1), core.ErrStaleVersion)
	assert.ErrorIs(t, s.RecordRetry(ctx, job.ID, version+1, "boom", time.Now()), core.ErrStaleVersion)

	ok, err := s.TryLock(ctx, job.ID, version+1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordPermanentFailure_SetsReasonAndFailedAt(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	version := leaseJob(t, s, job)

	clock.Advance(time.Second)
	require.NoError(t, s.RecordPermanentFailure(ctx, job.ID, version, "order not found"))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleteFailure, got.State())
	assert.Equal(t, "order not found", got.FailureReason)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.FailedAt)
	assert.True(t, got.FailedAt.Equal(clock.Now()))
	require.NotNil(t, got.CompletedAt)
}

func TestRecordPermanentFailure_DefaultsReason(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	version := leaseJob(t, s, job)

	require.NoError(t, s.RecordPermanentFailure(ctx, job.ID, version, ""))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "permanent failure", got.FailureReason)
}

func TestRecordPermanentFailure_StaleVersion(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	leaseJob(t, s, job)

	err := s.RecordPermanentFailure(ctx, job.ID, 0, "nope")
	assert.ErrorIs(t, err, core.ErrStaleVersion)
}

func TestRecordRetry_ReleasesWithBackoff(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	version := leaseJob(t, s, job)

	next := clock.Now().Add(30 * time.Second)
	require.NoError(t, s.RecordRetry(ctx, job.ID, version, "smtp timeout", next))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatePending, got.State())
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "smtp timeout", got.LastError)
	assert.True(t, got.RunAt.Equal(next))
	assert.Nil(t, got.FailedAt, "failed_at is reserved for permanent failures")
	assert.Equal(t, int64(2), got.Version)

	ready, err := s.FindReadyToRun(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ready, "not eligible before backoff elapses")

	clock.Advance(30 * time.Second)
	ready, err = s.FindReadyToRun(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, got.Version, ready[0].Version)
}

func TestRecordRetry_SanitizesError(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	version := leaseJob(t, s, job)

	long := strings.Repeat("x", security.MaxErrorMessageLength+500)
	require.NoError(t, s.RecordRetry(ctx, job.ID, version, long, clock.Now()))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, got.LastError, security.MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(got.LastError, "..."))
}

func TestRecordRetry_StaleVersion(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	leaseJob(t, s, job)

	err := s.RecordRetry(ctx, job.ID, 0, "boom", clock.Now())
	assert.ErrorIs(t, err, core.ErrStaleVersion)
}

// ──────────────────────────────────────────────────────────────────────────────
// ReapExpiredLocks
// ──────────────────────────────────────────────────────────────────────────────

func TestReapExpiredLocks_ReleasesExpiredLease(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	version := leaseJob(t, s, job)

	clock.Advance(6 * time.Minute)
	count, err := s.ReapExpiredLocks(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatePending, got.State())
	assert.Equal(t, 1, got.Attempts, "an abandoned lease counts as an attempt")
	assert.Equal(t, version+1, got.Version)
	assert.NotNil(t, got.LockedAt, "locked_at keeps the last lease time")

	// The original holder's write is now rejected.
	assert.ErrorIs(t, s.RecordSuccess(ctx, job.ID, version), core.ErrStaleVersion)

	ready, err := s.FindReadyToRun(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ready, 1)
}

func TestReapExpiredLocks_DoesNotTouchFreshLocks(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	leaseJob(t, s, job)

	clock.Advance(4 * time.Minute)
	count, err := s.ReapExpiredLocks(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateLeased, got.State())
}

func TestReapExpiredLocks_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	leaseJob(t, s, job)

	clock.Advance(10 * time.Minute)
	count, err := s.ReapExpiredLocks(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.ReapExpiredLocks(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
}

func TestReapExpiredLocks_IgnoresTerminalJobs(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	job := newTestJob("q", "a")
	require.NoError(t, s.Enqueue(ctx, job))
	require.NoError(t, s.RecordSuccess(ctx, job.ID, leaseJob(t, s, job)))

	clock.Advance(time.Hour)
	count, err := s.ReapExpiredLocks(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

func TestGetJob_ReturnsNotFound(t *testing.T) {
	s, _ := newTestStorage(t)

	_, err := s.GetJob(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestListIncomplete_ExcludesTerminal(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	pending := newTestJob("q", "pending")
	require.NoError(t, s.Enqueue(ctx, pending))
	clock.Advance(time.Second)

	leased := newTestJob("q", "leased")
	require.NoError(t, s.Enqueue(ctx, leased))
	leaseJob(t, s, leased)
	clock.Advance(time.Second)

	done := newTestJob("q", "done")
	require.NoError(t, s.Enqueue(ctx, done))
	require.NoError(t, s.RecordSuccess(ctx, done.ID, leaseJob(t, s, done)))

	jobs, err := s.ListIncomplete(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, pending.ID, jobs[0].ID, "oldest first")
	assert.Equal(t, leased.ID, jobs[1].ID)
}

func TestListIncomplete_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Enqueue(ctx, newTestJob("q", "a")))
	}

	jobs, err := s.ListIncomplete(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
}

func TestListFailed_MostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t)

	first := newTestJob("q", "first")
	second := newTestJob("q", "second")
	retried := newTestJob("q", "retried")
	for _, j := range []*core.Job{first, second, retried} {
		require.NoError(t, s.Enqueue(ctx, j))
	}

	require.NoError(t, s.RecordPermanentFailure(ctx, first.ID, leaseJob(t, s, first), "one"))
	clock.Advance(time.Minute)
	require.NoError(t, s.RecordPermanentFailure(ctx, second.ID, leaseJob(t, s, second), "two"))
	require.NoError(t, s.RecordRetry(ctx, retried.ID, leaseJob(t, s, retried), "transient", clock.Now()))

	jobs, err := s.ListFailed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2, "retried jobs are not failures")
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, listLimit(0))
	assert.Equal(t, DefaultListLimit, listLimit(-1))
	assert.Equal(t, 7, listLimit(7))
}

func TestGormStorage_QueueStats(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	pending := newTestJob("OrderEmailJobHandler", "order-1")
	require.NoError(t, s.Enqueue(ctx, pending))

	leased := newTestJob("OrderEmailJobHandler", "order-2")
	require.NoError(t, s.Enqueue(ctx, leased))
	leaseJob(t, s, leased)

	done := newTestJob("ShipmentNoticeJobHandler", "order-3")
	require.NoError(t, s.Enqueue(ctx, done))
	require.NoError(t, s.RecordSuccess(ctx, done.ID, leaseJob(t, s, done)))

	failed := newTestJob("ShipmentNoticeJobHandler", "order-4")
	require.NoError(t, s.Enqueue(ctx, failed))
	require.NoError(t, s.RecordPermanentFailure(ctx, failed.ID, leaseJob(t, s, failed), "not shipped"))

	stats, err := s.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []QueueStat{
		{QueueName: "OrderEmailJobHandler", Pending: 1, Leased: 1},
		{QueueName: "ShipmentNoticeJobHandler", Succeeded: 1, Failed: 1},
	}, stats)
}

func TestGormStorage_QueueStatsEmpty(t *testing.T) {
	s, _ := newTestStorage(t)

	stats, err := s.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}
