package worker

import (
	"math/rand"
	"time"
)

// MinRetryDelay keeps a retried job's run_at strictly after the failure.
const MinRetryDelay = time.Millisecond

// Backoff is the retry delay policy for transient failures:
// min(Base * 2^attempts, Max) plus up to JitterFraction of that delay.
type Backoff struct {
	Base           time.Duration
	Max            time.Duration
	JitterFraction float64
}

// DefaultBackoff returns 1s doubling up to 1h with 10% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:           time.Second,
		Max:            time.Hour,
		JitterFraction: 0.1,
	}
}

// Delay returns the wait before the next attempt, given the number of
// attempts already made.
func (b Backoff) Delay(attempts int) time.Duration {
	base, maxDelay := b.Base, b.Max
	if base <= 0 {
		base = MinRetryDelay
	}
	if maxDelay < base {
		maxDelay = base
	}

	d := base
	for i := 0; i < attempts && d < maxDelay; i++ {
		d *= 2
	}
	if d > maxDelay {
		d = maxDelay
	}

	if b.JitterFraction > 0 {
		if span := int64(float64(d) * b.JitterFraction); span > 0 {
			d += time.Duration(rand.Int63n(span))
		}
	}

	if d < MinRetryDelay {
		d = MinRetryDelay
	}
	return d
}
