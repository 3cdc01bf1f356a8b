package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermanent(t *testing.T) {
	cause := errors.New("order not found")
	err := Permanent("cannot send email", cause)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.True(t, f.Permanent)
	assert.Equal(t, "cannot send email", f.Message)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, "permanent failure: cannot send email: order not found", err.Error())
	assert.Equal(t, "cannot send email: order not found", FailureReason(err))
}

func TestTransient(t *testing.T) {
	err := Transient("smtp unavailable", nil)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.False(t, f.Permanent)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, "transient failure: smtp unavailable", err.Error())
	assert.Equal(t, "smtp unavailable", FailureReason(err))
}

func TestNoRetry(t *testing.T) {
	cause := errors.New("bad input")
	err := NoRetry(cause)

	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad input", FailureReason(err))
}

func TestRetryAfter(t *testing.T) {
	cause := errors.New("rate limited")
	err := RetryAfter(5*time.Second, cause)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.False(t, f.Permanent)
	assert.Equal(t, 5*time.Second, f.RetryAfter)
	assert.ErrorIs(t, err, cause)
}

func TestFailure_WrappedStillClassified(t *testing.T) {
	err := fmt.Errorf("handler: %w", Permanent("wrong state", nil))
	assert.True(t, IsPermanent(err))
	assert.Equal(t, "wrong state", FailureReason(err))
}

func TestFailureReason_UnclassifiedError(t *testing.T) {
	err := errors.New("connection reset")
	assert.False(t, IsPermanent(err))
	assert.Equal(t, "connection reset", FailureReason(err))
}

func TestFailure_EmptyMessage(t *testing.T) {
	f := &Failure{Permanent: true}
	assert.Equal(t, "permanent failure", f.Error())
	assert.Equal(t, "permanent failure", f.Reason())
}

func TestErrorVariables(t *testing.T) {
	assert.Contains(t, ErrStaleVersion.Error(), "version")
	assert.Contains(t, ErrDuplicateQueueName.Error(), "already registered")
	assert.Contains(t, ErrUnknownQueue.Error(), "unknown queue")
	assert.Contains(t, ErrJobNotFound.Error(), "not found")
}
