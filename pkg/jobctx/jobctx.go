// Package jobctx gives handlers read access to the job they are running.
package jobctx

import (
	"context"
	"log/slog"

	"github.com/printshop/jobqueue/pkg/core"
)

type jobContextKey struct{}

// JobContext is attached by the dispatcher to every handler context.
type JobContext struct {
	Job      *core.Job
	WorkerID string
	Logger   *slog.Logger
}

// WithJob returns ctx carrying jc.
func WithJob(ctx context.Context, jc *JobContext) context.Context {
	return context.WithValue(ctx, jobContextKey{}, jc)
}

// FromContext returns the JobContext, or nil outside a handler.
func FromContext(ctx context.Context) *JobContext {
	if jc, ok := ctx.Value(jobContextKey{}).(*JobContext); ok {
		return jc
	}
	return nil
}

// JobFromContext returns the current Job from context, or nil if not in a job handler.
// The returned job is a snapshot taken at lease time; do not modify it.
func JobFromContext(ctx context.Context) *core.Job {
	jc := FromContext(ctx)
	if jc == nil {
		return nil
	}
	return jc.Job
}

// JobIDFromContext returns the current job ID from context, or empty string if not in a job handler.
func JobIDFromContext(ctx context.Context) string {
	job := JobFromContext(ctx)
	if job == nil {
		return ""
	}
	return job.ID
}

// AttemptFromContext returns the 1-based number of the running attempt, or 0
// outside a handler.
func AttemptFromContext(ctx context.Context) int {
	job := JobFromContext(ctx)
	if job == nil {
		return 0
	}
	return job.Attempts + 1
}

// Logger returns a logger annotated with the running job, falling back to
// slog.Default outside a handler.
func Logger(ctx context.Context) *slog.Logger {
	jc := FromContext(ctx)
	if jc == nil || jc.Job == nil {
		return slog.Default()
	}
	l := jc.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(
		"job_id", jc.Job.ID,
		"queue", jc.Job.QueueName,
		"actor_id", jc.Job.ActorID,
		"attempt", jc.Job.Attempts+1,
	)
}
