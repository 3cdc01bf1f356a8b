package worker

import (
	"log/slog"
	"time"

	"github.com/printshop/jobqueue/pkg/security"
)

// Defaults applied by NewWorker.
const (
	DefaultConcurrency       = 10
	DefaultPollInterval      = time.Second
	DefaultLeaseTimeout      = 5 * time.Minute
	DefaultMaxAttempts       = 10
	DefaultSchedulerInterval = time.Second
)

// WorkerOption configures a Worker.
type WorkerOption interface {
	ApplyWorker(*WorkerConfig)
}

type workerOptionFunc func(*WorkerConfig)

func (f workerOptionFunc) ApplyWorker(c *WorkerConfig) { f(c) }

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of handler slots.
	Concurrency int

	// BatchSize caps how many candidates one poll fetches. 0 means Concurrency.
	// A poll never fetches more than the number of free slots.
	BatchSize int

	PollInterval time.Duration

	// LeaseTimeout is how long a lease may be held before other workers reclaim it.
	LeaseTimeout time.Duration

	// MaxAttempts is the attempt count at which a failing job is failed permanently.
	MaxAttempts int

	Backoff Backoff

	// HandlerTimeout bounds each handler call through its context. 0 disables it.
	// Handlers that ignore their context are not interrupted.
	HandlerTimeout time.Duration

	WorkerID          string
	EnableScheduler   bool
	SchedulerInterval time.Duration

	// StorageRetry governs outcome writes; FetchRetry governs candidate fetches.
	StorageRetry *RetryConfig
	FetchRetry   *RetryConfig

	Logger *slog.Logger
	Now    func() time.Time
}

// Concurrency sets the number of handler slots.
// Values are clamped to [1, MaxConcurrency].
func Concurrency(n int) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Concurrency = security.ClampConcurrency(n)
	})
}

// BatchSize sets the per-poll fetch limit.
func BatchSize(n int) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if n > 0 {
			c.BatchSize = n
		}
	})
}

// PollInterval sets the delay between poll cycles.
func PollInterval(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if d > 0 {
			c.PollInterval = d
		}
	})
}

// LeaseTimeout sets the age after which a lease is considered abandoned.
func LeaseTimeout(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if d > 0 {
			c.LeaseTimeout = d
		}
	})
}

// MaxAttempts sets the attempt ceiling. Values are clamped to [1, security.MaxAttempts].
func MaxAttempts(n int) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.MaxAttempts = security.ClampAttempts(n)
	})
}

// WithBackoff sets the retry delay policy.
func WithBackoff(b Backoff) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Backoff = b
	})
}

// HandlerTimeout sets a deadline on each handler call's context.
func HandlerTimeout(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if d >= 0 {
			c.HandlerTimeout = d
		}
	})
}

// WorkerID sets the identifier used in logs and events.
func WorkerID(id string) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if id != "" {
			c.WorkerID = id
		}
	})
}

// WithScheduler enables the scheduler in the worker.
func WithScheduler(enabled bool) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.EnableScheduler = enabled
	})
}

// WithLogger sets the worker logger.
func WithLogger(l *slog.Logger) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Logger = l
	})
}

// WithClock sets the clock used to compute retry times.
func WithClock(now func() time.Time) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Now = now
	})
}

// WithStorageRetry configures retry behavior for outcome writes.
func WithStorageRetry(config RetryConfig) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.StorageRetry = &config
	})
}

// WithFetchRetry configures retry behavior for candidate fetches.
func WithFetchRetry(config RetryConfig) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.FetchRetry = &config
	})
}

// WithRetryAttempts sets the attempt count for storage retries, keeping the
// default backoff.
func WithRetryAttempts(attempts int) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		cfg := DefaultRetryConfig()
		cfg.MaxAttempts = attempts
		c.StorageRetry = &cfg
	})
}

// DisableRetry makes every storage call a single attempt.
func DisableRetry() WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		once := RetryConfig{MaxAttempts: 1}
		c.StorageRetry = &once
		fetch := once
		c.FetchRetry = &fetch
	})
}
