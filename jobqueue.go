// Package jobqueue provides a durable, database-backed job queue for side
// effects that must survive crashes: order emails, shipment notices and the
// like.
//
// This is the main package users should import. It re-exports the public
// types of the pkg/ packages.
//
// Basic usage:
//
//	store, _ := jobqueue.Open(ctx, "jobs.db?_journal_mode=WAL&_busy_timeout=5000")
//	reg := jobqueue.MustNewRegistry(jobqueue.Registration{
//		Handler: jobqueue.HandlerFunc(sendOrderEmail),
//		Config:  jobqueue.HandlerConfig{QueueName: "OrderEmailJobHandler"},
//	})
//	q := jobqueue.New(store, reg)
//
//	// Enqueue from the request path
//	q.Enqueue(ctx, "OrderEmailJobHandler", orderID, jobqueue.Priority(10))
//
//	// Run a dispatcher in every worker process
//	jobqueue.NewWorker(q, jobqueue.Concurrency(8)).Start(ctx)
//
// Delivery is at-least-once: a handler may run again for the same job after a
// crash or lease expiry, so handlers must be idempotent.
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/printshop/jobqueue/pkg/core"
	"github.com/printshop/jobqueue/pkg/jobctx"
	"github.com/printshop/jobqueue/pkg/queue"
	"github.com/printshop/jobqueue/pkg/registry"
	"github.com/printshop/jobqueue/pkg/schedule"
	"github.com/printshop/jobqueue/pkg/security"
	"github.com/printshop/jobqueue/pkg/storage"
	"github.com/printshop/jobqueue/pkg/worker"
)

func init() {
	// Register the worker factory to enable queue.NewWorker()
	queue.WorkerFactory = func(q *queue.Queue, opts ...any) core.Starter {
		workerOpts := make([]worker.WorkerOption, 0, len(opts))
		for _, opt := range opts {
			wo, ok := opt.(worker.WorkerOption)
			if !ok {
				q.Logger().Warn("ignoring option that does not configure a worker",
					"option", fmt.Sprintf("%T", opt))
				continue
			}
			workerOpts = append(workerOpts, wo)
		}
		return worker.NewWorker(q, workerOpts...)
	}
}

type (
	// Job is one row of the jobs table.
	Job = core.Job

	// State is the lifecycle state derived from a job's flags.
	State = core.State

	// Store is the durable job table shared by all dispatchers.
	Store = core.Store

	// Failure classifies a handler error as permanent or transient.
	Failure = core.Failure

	Event           = core.Event
	JobStarted      = core.JobStarted
	JobCompleted    = core.JobCompleted
	JobFailed       = core.JobFailed
	JobRetrying     = core.JobRetrying
	LeasesReclaimed = core.LeasesReclaimed

	// Handler processes the jobs of one queue.
	Handler       = registry.Handler
	HandlerFunc   = registry.HandlerFunc
	HandlerConfig = registry.Config
	Registration  = registry.Registration
	Registry      = registry.Registry

	// Queue is the enqueue API plus lifecycle hooks and recurring schedules.
	Queue        = queue.Queue
	QueueOption  = queue.QueueOption
	Option       = queue.Option
	Options      = queue.Options
	ScheduledJob = queue.ScheduledJob

	// Worker is the dispatcher that leases and runs jobs.
	Worker       = worker.Worker
	WorkerOption = worker.WorkerOption
	WorkerConfig = worker.WorkerConfig
	Backoff      = worker.Backoff
	RetryConfig  = worker.RetryConfig

	// Schedule defines when a recurring job should next be enqueued.
	Schedule = schedule.Schedule

	// GormStorage implements Store using GORM.
	GormStorage = storage.GormStorage
)

// Job states
const (
	StatePending         = core.StatePending
	StateLeased          = core.StateLeased
	StateCompleteSuccess = core.StateCompleteSuccess
	StateCompleteFailure = core.StateCompleteFailure
)

// Defaults
const (
	DefaultPriority     = core.DefaultPriority
	DefaultConcurrency  = worker.DefaultConcurrency
	DefaultPollInterval = worker.DefaultPollInterval
	DefaultLeaseTimeout = worker.DefaultLeaseTimeout
	DefaultMaxAttempts  = worker.DefaultMaxAttempts
)

// Security limits
const (
	MaxQueueNameLength    = security.MaxQueueNameLength
	MaxActorIDLength      = security.MaxActorIDLength
	MaxAttemptsLimit      = security.MaxAttempts
	MaxConcurrency        = security.MaxConcurrency
	MaxErrorMessageLength = security.MaxErrorMessageLength
)

// Error variables
var (
	ErrJobNotFound        = core.ErrJobNotFound
	ErrStaleVersion       = core.ErrStaleVersion
	ErrInvalidQueueName   = core.ErrInvalidQueueName
	ErrQueueNameTooLong   = core.ErrQueueNameTooLong
	ErrInvalidActorID     = core.ErrInvalidActorID
	ErrActorIDTooLong     = core.ErrActorIDTooLong
	ErrNilHandler         = core.ErrNilHandler
	ErrMissingQueueName   = core.ErrMissingQueueName
	ErrDuplicateQueueName = core.ErrDuplicateQueueName
	ErrUnknownQueue       = core.ErrUnknownQueue
)

// New creates a Queue over store. reg may be nil for enqueue-only processes.
func New(store Store, reg *Registry, opts ...QueueOption) *Queue {
	return queue.New(store, reg, opts...)
}

// NewRegistry validates and indexes handler registrations.
func NewRegistry(regs ...Registration) (*Registry, error) {
	return registry.New(regs...)
}

// MustNewRegistry is like NewRegistry but panics on a configuration error.
func MustNewRegistry(regs ...Registration) *Registry {
	return registry.MustNew(regs...)
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB, opts ...storage.Option) *GormStorage {
	return storage.NewGormStorage(db, opts...)
}

// Open connects to url (postgres:// or a SQLite path), applies pool options
// and migrates the jobs table.
func Open(ctx context.Context, url string, opts ...storage.PoolOption) (*GormStorage, error) {
	db, err := storage.Open(url, logger.Warn, opts...)
	if err != nil {
		return nil, err
	}
	store := storage.NewGormStorage(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// NewWorker creates a dispatcher for q.
func NewWorker(q *Queue, opts ...WorkerOption) *Worker {
	return worker.NewWorker(q, opts...)
}

// Handler failures

// Permanent returns a failure that ends the job without retry.
func Permanent(message string, cause error) error {
	return core.Permanent(message, cause)
}

// Transient returns a failure that is retried with backoff.
func Transient(message string, cause error) error {
	return core.Transient(message, cause)
}

// NoRetry wraps an error to indicate it should not be retried.
func NoRetry(err error) error {
	return core.NoRetry(err)
}

// RetryAfter wraps an error to indicate it should be retried after a delay.
func RetryAfter(d time.Duration, err error) error {
	return core.RetryAfter(d, err)
}

// IsPermanent reports whether err carries a permanent Failure.
func IsPermanent(err error) bool {
	return core.IsPermanent(err)
}

// Validation

func ValidateQueueName(name string) error {
	return security.ValidateQueueName(name)
}

func ValidateActorID(id string) error {
	return security.ValidateActorID(id)
}

// Enqueue options

// Priority sets the job priority (higher runs first).
func Priority(p int) Option {
	return queue.Priority(p)
}

// Delay makes the job eligible after d.
func Delay(d time.Duration) Option {
	return queue.Delay(d)
}

// At makes the job eligible at t.
func At(t time.Time) Option {
	return queue.At(t)
}

// Worker options

func Concurrency(n int) WorkerOption {
	return worker.Concurrency(n)
}

func BatchSize(n int) WorkerOption {
	return worker.BatchSize(n)
}

func PollInterval(d time.Duration) WorkerOption {
	return worker.PollInterval(d)
}

func LeaseTimeout(d time.Duration) WorkerOption {
	return worker.LeaseTimeout(d)
}

func MaxAttempts(n int) WorkerOption {
	return worker.MaxAttempts(n)
}

func WithBackoff(b Backoff) WorkerOption {
	return worker.WithBackoff(b)
}

// HandlerTimeout cancels the handler context after d. Handlers that ignore
// their context keep their slot until they return.
func HandlerTimeout(d time.Duration) WorkerOption {
	return worker.HandlerTimeout(d)
}

// WithScheduler enables the recurring-job scheduler in the worker.
func WithScheduler(enabled bool) WorkerOption {
	return worker.WithScheduler(enabled)
}

// Schedule functions

// Every creates a schedule that runs at fixed intervals.
func Every(d time.Duration) Schedule {
	return schedule.Every(d)
}

// Daily creates a schedule that runs at a specific UTC time each day.
func Daily(hour, minute int) Schedule {
	return schedule.Daily(hour, minute)
}

// Weekly creates a schedule that runs at a specific day and time each week.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return schedule.Weekly(day, hour, minute)
}

// Cron creates a schedule from a cron expression. It panics on a bad expression.
func Cron(expr string) Schedule {
	return schedule.Cron(expr)
}

// ParseSchedule parses a cron expression or descriptor such as "@hourly".
func ParseSchedule(expr string) (Schedule, error) {
	return schedule.Parse(expr)
}

// Handler context

// JobFromContext returns the current Job from context, or nil if not in a job handler.
func JobFromContext(ctx context.Context) *Job {
	return jobctx.JobFromContext(ctx)
}

// JobIDFromContext returns the current job ID from context, or empty string if not in a job handler.
func JobIDFromContext(ctx context.Context) string {
	return jobctx.JobIDFromContext(ctx)
}

// AttemptFromContext returns the 1-based attempt number of the running job.
func AttemptFromContext(ctx context.Context) int {
	return jobctx.AttemptFromContext(ctx)
}
