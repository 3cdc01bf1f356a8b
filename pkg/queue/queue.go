package queue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/printshop/jobqueue/pkg/core"
	"github.com/printshop/jobqueue/pkg/registry"
	"github.com/printshop/jobqueue/pkg/schedule"
	"github.com/printshop/jobqueue/pkg/security"
)

// Queue is the entry point collaborators use to create jobs. It also carries
// the hooks and event subscribers the dispatcher reports to.
type Queue struct {
	store         core.Store
	registry      *registry.Registry
	now           func() time.Time
	logger        *slog.Logger
	scheduledJobs map[string]*ScheduledJob
	mu            sync.RWMutex

	// Hooks
	onStart    []func(context.Context, *core.Job)
	onComplete []func(context.Context, *core.Job)
	onFail     []func(context.Context, *core.Job, error)
	onRetry    []func(context.Context, *core.Job, int, error)

	// Event stream
	eventSubs []chan core.Event
}

// ScheduledJob is a recurring enqueue of one (queue, actor) pair.
type ScheduledJob struct {
	Name      string
	QueueName string
	ActorID   string
	Schedule  schedule.Schedule
	Options   []Option
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithClock sets the clock used to resolve Delay.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// New creates a Queue over store. reg may be nil; it is only used to pick a
// queue's default priority and is handed to workers built from this queue.
func New(store core.Store, reg *registry.Registry, opts ...QueueOption) *Queue {
	q := &Queue{
		store:    store,
		registry: reg,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Store returns the underlying store.
func (q *Queue) Store() core.Store {
	return q.store
}

// Registry returns the handler registry, which may be nil.
func (q *Queue) Registry() *registry.Registry {
	return q.registry
}

// Now returns the queue's clock reading.
func (q *Queue) Now() time.Time {
	return q.now()
}

// Logger returns the queue's logger.
func (q *Queue) Logger() *slog.Logger {
	return q.logger
}

// Enqueue creates a job for actorID on queueName and returns its id.
// No handler needs to be registered for queueName in this process, and no
// deduplication is performed: two identical calls create two jobs.
func (q *Queue) Enqueue(ctx context.Context, queueName, actorID string, opts ...Option) (string, error) {
	return q.EnqueueWith(ctx, q.store, queueName, actorID, opts...)
}

// EnqueueWith is Enqueue against a different store, typically one bound to
// the caller's transaction via storage.GormStorage.WithDB.
func (q *Queue) EnqueueWith(ctx context.Context, store core.Store, queueName, actorID string, opts ...Option) (string, error) {
	job, err := q.buildJob(queueName, actorID, opts...)
	if err != nil {
		return "", err
	}

	if err := store.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("jobqueue: failed to enqueue: %w", err)
	}

	q.logger.DebugContext(ctx, "job enqueued",
		"job_id", job.ID,
		"queue", job.QueueName,
		"actor_id", job.ActorID,
		"priority", job.Priority,
		"run_at", job.RunAt)
	return job.ID, nil
}

func (q *Queue) buildJob(queueName, actorID string, opts ...Option) (*core.Job, error) {
	if err := security.ValidateQueueName(queueName); err != nil {
		return nil, err
	}
	if err := security.ValidateActorID(actorID); err != nil {
		return nil, err
	}

	options := NewOptions(opts...)

	job := &core.Job{
		QueueName: queueName,
		ActorID:   actorID,
		Priority:  q.defaultPriority(queueName),
	}
	if options.HasPriority() {
		job.Priority = options.Priority
	}

	switch {
	case options.RunAt != nil:
		job.RunAt = options.RunAt.UTC()
	case options.Delay > 0:
		job.RunAt = q.now().Add(options.Delay).UTC()
	}

	return job, nil
}

func (q *Queue) defaultPriority(queueName string) int {
	if e, ok := q.registry.Lookup(queueName); ok {
		return e.Priority
	}
	return core.DefaultPriority
}

// Schedule registers a recurring enqueue of (queueName, actorID). Schedules are
// only fired by a worker started with the scheduler enabled; run exactly one
// such worker, since recurring enqueues are not deduplicated.
func (q *Queue) Schedule(name, queueName, actorID string, sched schedule.Schedule, opts ...Option) error {
	if name == "" {
		return fmt.Errorf("jobqueue: schedule name is empty")
	}
	if sched == nil {
		return fmt.Errorf("jobqueue: schedule %q is nil", name)
	}
	if err := security.ValidateQueueName(queueName); err != nil {
		return err
	}
	if err := security.ValidateActorID(actorID); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.scheduledJobs == nil {
		q.scheduledJobs = make(map[string]*ScheduledJob)
	}
	q.scheduledJobs[name] = &ScheduledJob{
		Name:      name,
		QueueName: queueName,
		ActorID:   actorID,
		Schedule:  sched,
		Options:   opts,
	}
	return nil
}

// ScheduledJobs returns the registered schedules ordered by name.
func (q *Queue) ScheduledJobs() []*ScheduledJob {
	q.mu.RLock()
	defer q.mu.RUnlock()

	jobs := make([]*ScheduledJob, 0, len(q.scheduledJobs))
	for _, sj := range q.scheduledJobs {
		jobs = append(jobs, sj)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// OnJobStart registers a callback for when a job starts.
func (q *Queue) OnJobStart(fn func(context.Context, *core.Job)) {
	q.mu.Lock()
	q.onStart = append(q.onStart, fn)
	q.mu.Unlock()
}

// OnJobComplete registers a callback for when a job completes successfully.
func (q *Queue) OnJobComplete(fn func(context.Context, *core.Job)) {
	q.mu.Lock()
	q.onComplete = append(q.onComplete, fn)
	q.mu.Unlock()
}

// OnJobFail registers a callback for when a job fails permanently.
func (q *Queue) OnJobFail(fn func(context.Context, *core.Job, error)) {
	q.mu.Lock()
	q.onFail = append(q.onFail, fn)
	q.mu.Unlock()
}

// OnRetry registers a callback for when a job is released for another attempt.
func (q *Queue) OnRetry(fn func(context.Context, *core.Job, int, error)) {
	q.mu.Lock()
	q.onRetry = append(q.onRetry, fn)
	q.mu.Unlock()
}

// Events returns a channel for receiving queue events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (q *Queue) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	q.mu.Lock()
	q.eventSubs = append(q.eventSubs, ch)
	q.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed. After Unsubscribe returns, no further events
// will be sent to it.
func (q *Queue) Unsubscribe(ch <-chan core.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, sub := range q.eventSubs {
		if sub == ch {
			q.eventSubs = append(q.eventSubs[:i], q.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit sends an event to all subscribers, dropping it for any whose buffer is full.
func (q *Queue) Emit(e core.Event) {
	q.mu.RLock()
	subs := make([]chan core.Event, len(q.eventSubs))
	copy(subs, q.eventSubs)
	q.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// CallStartHooks calls all registered start hooks.
func (q *Queue) CallStartHooks(ctx context.Context, job *core.Job) {
	q.mu.RLock()
	hooks := slices.Clone(q.onStart)
	q.mu.RUnlock()

	for _, fn := range hooks {
		q.safeHook(ctx, "start", job, func() { fn(ctx, job) })
	}
}

// CallCompleteHooks calls all registered complete hooks.
func (q *Queue) CallCompleteHooks(ctx context.Context, job *core.Job) {
	q.mu.RLock()
	hooks := slices.Clone(q.onComplete)
	q.mu.RUnlock()

	for _, fn := range hooks {
		q.safeHook(ctx, "complete", job, func() { fn(ctx, job) })
	}
}

// CallFailHooks calls all registered fail hooks.
func (q *Queue) CallFailHooks(ctx context.Context, job *core.Job, err error) {
	q.mu.RLock()
	hooks := slices.Clone(q.onFail)
	q.mu.RUnlock()

	for _, fn := range hooks {
		q.safeHook(ctx, "fail", job, func() { fn(ctx, job, err) })
	}
}

// CallRetryHooks calls all registered retry hooks.
func (q *Queue) CallRetryHooks(ctx context.Context, job *core.Job, attempt int, err error) {
	q.mu.RLock()
	hooks := slices.Clone(q.onRetry)
	q.mu.RUnlock()

	for _, fn := range hooks {
		q.safeHook(ctx, "retry", job, func() { fn(ctx, job, attempt, err) })
	}
}

// safeHook keeps a panicking hook from taking down the dispatcher slot.
func (q *Queue) safeHook(ctx context.Context, kind string, job *core.Job, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.ErrorContext(ctx, "hook panicked",
				"hook", kind,
				"job_id", job.ID,
				"panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// WorkerFactory is set by the root package to create workers.
// This avoids import cycles between queue and worker packages.
var WorkerFactory func(q *Queue, opts ...any) core.Starter

// NewWorker creates a new worker for this queue.
// Options should be worker.WorkerOption values.
func (q *Queue) NewWorker(opts ...any) core.Starter {
	if WorkerFactory == nil {
		panic("jobqueue: WorkerFactory not initialized - import github.com/printshop/jobqueue to initialize")
	}
	return WorkerFactory(q, opts...)
}
