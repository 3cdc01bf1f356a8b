package core

import (
	"errors"
	"fmt"
	"time"
)

// Store and configuration errors.
var (
	ErrJobNotFound        = errors.New("jobqueue: job not found")
	ErrStaleVersion       = errors.New("jobqueue: job version changed, lease lost")
	ErrInvalidQueueName   = errors.New("jobqueue: invalid queue name")
	ErrQueueNameTooLong   = errors.New("jobqueue: queue name too long")
	ErrInvalidActorID     = errors.New("jobqueue: invalid actor id")
	ErrActorIDTooLong     = errors.New("jobqueue: actor id too long")
	ErrNilHandler         = errors.New("jobqueue: handler cannot be nil")
	ErrMissingQueueName   = errors.New("jobqueue: handler registered without a queue name")
	ErrDuplicateQueueName = errors.New("jobqueue: queue name already registered")
	ErrUnknownQueue       = errors.New("jobqueue: unknown queue")
)

// Failure is the typed error a handler returns to tell the dispatcher whether
// retrying can help. Errors that are not a *Failure are treated as transient.
type Failure struct {
	Permanent bool
	Message   string
	Cause     error

	// RetryAfter overrides the backoff delay for a transient failure when > 0.
	RetryAfter time.Duration
}

func (f *Failure) Error() string {
	kind := "transient"
	if f.Permanent {
		kind = "permanent"
	}
	switch {
	case f.Message != "" && f.Cause != nil:
		return fmt.Sprintf("%s failure: %s: %v", kind, f.Message, f.Cause)
	case f.Message != "":
		return fmt.Sprintf("%s failure: %s", kind, f.Message)
	case f.Cause != nil:
		return fmt.Sprintf("%s failure: %v", kind, f.Cause)
	default:
		return kind + " failure"
	}
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Reason returns the text recorded on the job row for this failure.
func (f *Failure) Reason() string {
	switch {
	case f.Message != "" && f.Cause != nil:
		return f.Message + ": " + f.Cause.Error()
	case f.Message != "":
		return f.Message
	case f.Cause != nil:
		return f.Cause.Error()
	default:
		return f.Error()
	}
}

// Permanent returns a failure that ends the job without retry.
func Permanent(message string, cause error) error {
	return &Failure{Permanent: true, Message: message, Cause: cause}
}

// Transient returns a failure that is retried with backoff.
func Transient(message string, cause error) error {
	return &Failure{Message: message, Cause: cause}
}

// NoRetry wraps an error to indicate it should not be retried.
func NoRetry(err error) error {
	return &Failure{Permanent: true, Cause: err}
}

// RetryAfter wraps an error to indicate it should be retried after a delay.
func RetryAfter(d time.Duration, err error) error {
	return &Failure{Cause: err, RetryAfter: d}
}

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsPermanent reports whether err carries a permanent Failure.
func IsPermanent(err error) bool {
	f, ok := AsFailure(err)
	return ok && f.Permanent
}

// FailureReason returns the message to persist for err.
func FailureReason(err error) string {
	if f, ok := AsFailure(err); ok {
		return f.Reason()
	}
	return err.Error()
}
