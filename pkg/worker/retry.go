package worker

import (
	"context"
	"errors"
	"time"

	"github.com/printshop/jobqueue/pkg/core"
)

// RetryConfig bounds how often the dispatcher repeats a failed store call.
// Waits between tries follow Backoff, the same policy used for job retries.
type RetryConfig struct {
	// MaxAttempts counts the first try. Values below 1 mean a single try.
	MaxAttempts int
	Backoff     Backoff
}

// DefaultRetryConfig is used for outcome writes: 5 tries from 100ms up to 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		Backoff:     Backoff{Base: 100 * time.Millisecond, Max: 5 * time.Second, JitterFraction: 0.1},
	}
}

func defaultFetchRetry() RetryConfig {
	// Fetches back off longer so an outage is not hammered by every poll.
	return RetryConfig{
		MaxAttempts: 3,
		Backoff:     Backoff{Base: 500 * time.Millisecond, Max: 10 * time.Second, JitterFraction: 0.2},
	}
}

// Do runs op until it succeeds, returns an error that retrying cannot fix,
// or runs out of attempts. The last error is returned.
func (c RetryConfig) Do(ctx context.Context, op func() error) error {
	attempts := max(c.MaxAttempts, 1)

	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil || !IsRetryableError(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(c.Backoff.Delay(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

// IsRetryableError reports whether repeating a store call could succeed.
// Storage errors are assumed transient; cancellation and lost leases are not.
func IsRetryableError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, core.ErrStaleVersion):
		// The row moved on; repeating the write cannot match it again.
		return false
	}
	return true
}
