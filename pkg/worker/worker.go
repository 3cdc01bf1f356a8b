package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/printshop/jobqueue/pkg/core"
	"github.com/printshop/jobqueue/pkg/jobctx"
	"github.com/printshop/jobqueue/pkg/queue"
	"github.com/printshop/jobqueue/pkg/registry"
)

// Failure reasons recorded by the dispatcher itself.
const (
	ReasonUnknownQueue       = "unknown queue"
	ReasonMaxAttemptsReached = "max attempts exceeded"
)

// Worker is a dispatcher: it leases eligible jobs from the store and runs them
// through the registry's handlers. Any number of workers, in any number of
// processes, may share one store; the version check in TryLock is the only
// coordination between them.
type Worker struct {
	queue    *queue.Queue
	store    core.Store
	registry *registry.Registry
	config   WorkerConfig
	logger   *slog.Logger

	// slots is a counting semaphore over running handlers.
	slots chan struct{}
	wg    sync.WaitGroup

	// nextFire is owned by the scheduler goroutine.
	nextFire map[string]time.Time
}

// NewWorker creates a new worker for the given queue. Handlers are looked up in
// the queue's registry.
func NewWorker(q *queue.Queue, opts ...WorkerOption) *Worker {
	config := WorkerConfig{
		Concurrency:       DefaultConcurrency,
		PollInterval:      DefaultPollInterval,
		LeaseTimeout:      DefaultLeaseTimeout,
		MaxAttempts:       DefaultMaxAttempts,
		Backoff:           DefaultBackoff(),
		SchedulerInterval: DefaultSchedulerInterval,
		WorkerID:          uuid.New().String(),
	}

	for _, opt := range opts {
		opt.ApplyWorker(&config)
	}

	if config.BatchSize <= 0 || config.BatchSize > config.Concurrency {
		config.BatchSize = config.Concurrency
	}
	if config.StorageRetry == nil {
		defaultCfg := DefaultRetryConfig()
		config.StorageRetry = &defaultCfg
	}
	if config.FetchRetry == nil {
		fetchCfg := defaultFetchRetry()
		config.FetchRetry = &fetchCfg
	}
	if config.Now == nil {
		config.Now = q.Now
	}
	if config.Logger == nil {
		config.Logger = q.Logger()
	}

	w := &Worker{
		queue:    q,
		store:    q.Store(),
		registry: q.Registry(),
		config:   config,
		logger:   config.Logger.With("worker_id", config.WorkerID),
		slots:    make(chan struct{}, config.Concurrency),
		nextFire: make(map[string]time.Time),
	}

	if config.HandlerTimeout > 0 && config.HandlerTimeout >= config.LeaseTimeout {
		w.logger.Warn("handler timeout is not shorter than lease timeout; slow jobs may be reclaimed while still running",
			"handler_timeout", config.HandlerTimeout,
			"lease_timeout", config.LeaseTimeout)
	}
	return w
}

// ID returns the worker identifier.
func (w *Worker) ID() string {
	return w.config.WorkerID
}

// Config returns the effective configuration.
func (w *Worker) Config() WorkerConfig {
	return w.config
}

// Start polls until ctx is cancelled, then waits for running handlers to finish.
// Handlers run on a context detached from ctx so shutdown does not abort them
// mid-side-effect.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker started",
		"concurrency", w.config.Concurrency,
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval,
		"lease_timeout", w.config.LeaseTimeout,
		"max_attempts", w.config.MaxAttempts)

	schedulerDone := make(chan struct{})
	if w.config.EnableScheduler {
		go func() {
			defer close(schedulerDone)
			w.runScheduler(ctx)
		}()
	} else {
		close(schedulerDone)
	}

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Poll(ctx); err != nil && !isContextErr(err) {
			w.logger.Error("poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping, waiting for running jobs")
			<-schedulerDone
			w.Wait()
			w.logger.Info("worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait blocks until every handler started by Poll has finished.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Poll runs one dispatch cycle: reclaim expired leases, fetch up to the number
// of free slots, lease each candidate and start it. It returns the number of
// jobs leased. Poll must not be called concurrently on the same Worker.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	w.reap(ctx)

	limit := min(w.config.BatchSize, cap(w.slots)-len(w.slots))
	if limit <= 0 {
		return 0, nil
	}

	var candidates []*core.Job
	err := w.config.FetchRetry.Do(ctx, func() error {
		var fetchErr error
		candidates, fetchErr = w.store.FindReadyToRun(ctx, limit)
		return fetchErr
	})
	if err != nil {
		return 0, fmt.Errorf("find ready jobs: %w", err)
	}

	leased := 0
	for _, job := range candidates {
		if ctx.Err() != nil {
			break
		}

		ok, err := w.store.TryLock(ctx, job.ID, job.Version)
		if err != nil {
			w.logger.Warn("lease attempt failed", "job_id", job.ID, "error", err)
			continue
		}
		if !ok {
			// Another worker won the race.
			w.logger.Debug("lease conflict", "job_id", job.ID, "queue", job.QueueName)
			continue
		}

		leasedAt := w.now()
		job.Locked = true
		job.LockedAt = &leasedAt
		job.Version++
		leased++

		w.slots <- struct{}{}
		w.wg.Add(1)
		go func(job *core.Job) {
			defer w.wg.Done()
			defer func() { <-w.slots }()
			w.execute(context.WithoutCancel(ctx), job)
		}(job)
	}

	return leased, nil
}

func (w *Worker) reap(ctx context.Context) {
	n, err := w.store.ReapExpiredLocks(ctx, w.config.LeaseTimeout)
	if err != nil {
		if !isContextErr(err) {
			w.logger.Error("failed to reclaim expired leases", "error", err)
		}
		return
	}
	if n > 0 {
		w.logger.Warn("reclaimed expired leases", "count", n, "lease_timeout", w.config.LeaseTimeout)
		w.queue.Emit(&core.LeasesReclaimed{Count: n, WorkerID: w.config.WorkerID, Timestamp: w.now()})
	}
}

// execute runs one leased job and records its outcome. Nothing the handler
// does can escape this function.
func (w *Worker) execute(ctx context.Context, job *core.Job) {
	log := w.jobLogger(job)

	if job.Attempts >= w.config.MaxAttempts {
		w.fail(ctx, log, job, ReasonMaxAttemptsReached,
			fmt.Errorf("%s: %d attempts already made", ReasonMaxAttemptsReached, job.Attempts))
		return
	}

	entry, ok := w.registry.Lookup(job.QueueName)
	if !ok {
		reason := ReasonUnknownQueue + ": " + job.QueueName
		w.fail(ctx, log, job, reason, fmt.Errorf("%w: %s", core.ErrUnknownQueue, job.QueueName))
		return
	}

	startTime := w.now()
	w.queue.CallStartHooks(ctx, job)
	w.queue.Emit(&core.JobStarted{Job: snapshot(job), WorkerID: w.config.WorkerID, Timestamp: startTime})
	log.Debug("job started")

	err := w.run(ctx, log, job, entry.Handler)

	switch {
	case err == nil:
		w.succeed(ctx, log, job, w.now().Sub(startTime))
	case core.IsPermanent(err):
		w.fail(ctx, log, job, core.FailureReason(err), err)
	default:
		w.retry(ctx, log, job, err)
	}
}

func (w *Worker) run(ctx context.Context, log *slog.Logger, job *core.Job, h registry.Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	runCtx := jobctx.WithJob(ctx, &jobctx.JobContext{
		Job:      snapshot(job),
		WorkerID: w.config.WorkerID,
		Logger:   w.logger,
	})

	if w.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, w.config.HandlerTimeout)
		defer cancel()
	}

	err = h.Run(runCtx, job.ActorID)
	if err != nil && w.config.HandlerTimeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && !core.IsPermanent(err) {
		err = core.Transient(fmt.Sprintf("handler timed out after %s", w.config.HandlerTimeout), err)
	}
	return err
}

func (w *Worker) succeed(ctx context.Context, log *slog.Logger, job *core.Job, elapsed time.Duration) {
	err := w.record(ctx, func() error {
		return w.store.RecordSuccess(ctx, job.ID, job.Version)
	})
	if err != nil {
		w.recordFailed(log, "success", err)
		return
	}

	completedAt := w.now()
	job.Attempts++
	job.Locked = false
	job.Complete = true
	job.CompletedAt = &completedAt
	job.Version++

	log.Info("job completed", "duration", elapsed)
	w.queue.CallCompleteHooks(ctx, job)
	w.queue.Emit(&core.JobCompleted{Job: snapshot(job), Duration: elapsed, Timestamp: completedAt})
}

func (w *Worker) retry(ctx context.Context, log *slog.Logger, job *core.Job, cause error) {
	if job.Attempts+1 >= w.config.MaxAttempts {
		w.fail(ctx, log, job, ReasonMaxAttemptsReached+": "+core.FailureReason(cause), cause)
		return
	}

	delay := w.config.Backoff.Delay(job.Attempts)
	if f, ok := core.AsFailure(cause); ok && f.RetryAfter > 0 {
		delay = f.RetryAfter
	}
	nextRunAt := w.now().Add(delay)
	msg := core.FailureReason(cause)

	err := w.record(ctx, func() error {
		return w.store.RecordRetry(ctx, job.ID, job.Version, msg, nextRunAt)
	})
	if err != nil {
		w.recordFailed(log, "retry", err)
		return
	}

	job.Attempts++
	job.Locked = false
	job.LastError = msg
	job.RunAt = nextRunAt
	job.Version++

	log.Warn("job failed, will retry",
		"error", msg,
		"delay", delay,
		"next_run_at", nextRunAt)
	w.queue.CallRetryHooks(ctx, job, job.Attempts, cause)
	w.queue.Emit(&core.JobRetrying{
		Job:       snapshot(job),
		Attempt:   job.Attempts,
		Error:     cause,
		NextRunAt: nextRunAt,
		Timestamp: w.now(),
	})
}

func (w *Worker) fail(ctx context.Context, log *slog.Logger, job *core.Job, reason string, cause error) {
	err := w.record(ctx, func() error {
		return w.store.RecordPermanentFailure(ctx, job.ID, job.Version, reason)
	})
	if err != nil {
		w.recordFailed(log, "permanent failure", err)
		return
	}

	failedAt := w.now()
	job.Attempts++
	job.Locked = false
	job.Complete = true
	job.CompletedAt = &failedAt
	job.CompletedWithFailure = true
	job.FailureReason = reason
	job.FailedAt = &failedAt
	job.Version++

	log.Error("job failed permanently", "reason", reason)
	w.queue.CallFailHooks(ctx, job, cause)
	w.queue.Emit(&core.JobFailed{Job: snapshot(job), Reason: reason, Error: cause, Timestamp: failedAt})
}

// snapshot copies job so events and handler contexts never share the row
// the dispatcher keeps updating.
func snapshot(job *core.Job) *core.Job {
	c := *job
	return &c
}

// record performs an outcome write with retry on transient storage errors.
func (w *Worker) record(ctx context.Context, write func() error) error {
	return w.config.StorageRetry.Do(ctx, write)
}

func (w *Worker) recordFailed(log *slog.Logger, outcome string, err error) {
	if errors.Is(err, core.ErrStaleVersion) {
		// The lease expired and was reclaimed; the job will run again elsewhere.
		log.Warn("lease lost before outcome was recorded", "outcome", outcome)
		return
	}
	log.Error("failed to record job outcome after retries", "outcome", outcome, "error", err)
}

func (w *Worker) jobLogger(job *core.Job) *slog.Logger {
	return w.logger.With(
		"job_id", job.ID,
		"queue", job.QueueName,
		"actor_id", job.ActorID,
		"attempt", job.Attempts+1,
	)
}

func (w *Worker) now() time.Time {
	return w.config.Now()
}

func (w *Worker) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(w.config.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scheduleTick(ctx, w.now())
		}
	}
}

// scheduleTick enqueues every schedule whose fire time has passed. A schedule
// seen for the first time fires at its next occurrence, not immediately.
func (w *Worker) scheduleTick(ctx context.Context, now time.Time) int {
	fired := 0
	for _, sj := range w.queue.ScheduledJobs() {
		next, seen := w.nextFire[sj.Name]
		if !seen {
			w.nextFire[sj.Name] = sj.Schedule.Next(now)
			continue
		}
		if now.Before(next) {
			continue
		}

		id, err := w.queue.Enqueue(ctx, sj.QueueName, sj.ActorID, sj.Options...)
		if err != nil {
			w.logger.Error("failed to enqueue scheduled job", "schedule", sj.Name, "error", err)
			continue
		}
		fired++
		w.nextFire[sj.Name] = sj.Schedule.Next(now)
		w.logger.Info("scheduled job enqueued", "schedule", sj.Name, "job_id", id, "queue", sj.QueueName)
	}
	return fired
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
