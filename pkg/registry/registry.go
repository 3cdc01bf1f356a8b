package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/printshop/jobqueue/pkg/core"
	"github.com/printshop/jobqueue/pkg/security"
)

// Handler processes the jobs of one queue.
//
// Run receives the job's actor id and must tolerate at-least-once delivery.
// Return core.Permanent (or core.NoRetry) when retrying cannot help, for example
// when the actor no longer exists or is in the wrong state. Any other error is
// retried with backoff.
type Handler interface {
	Run(ctx context.Context, actorID string) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, actorID string) error

// Run calls f(ctx, actorID).
func (f HandlerFunc) Run(ctx context.Context, actorID string) error {
	return f(ctx, actorID)
}

// QueueNamer is implemented by handlers that declare their own queue name.
// It is consulted only when the registration Config leaves QueueName empty.
type QueueNamer interface {
	QueueName() string
}

// Config is the metadata supplied alongside a handler at registration.
type Config struct {
	// QueueName binds jobs to this handler. Falls back to QueueNamer.
	QueueName string

	// Priority is the default enqueue priority for the queue. 0 means
	// core.DefaultPriority.
	Priority int

	// Description is informational and shown by operational tooling.
	Description string
}

// Registration pairs a handler with its configuration.
type Registration struct {
	Handler Handler
	Config  Config
}

// Entry is a resolved registration.
type Entry struct {
	QueueName   string
	Handler     Handler
	Priority    int
	Description string
}

// Registry is an immutable queue-name to handler mapping.
type Registry struct {
	entries map[string]*Entry
}

// New validates and indexes the registrations. It returns the first
// configuration error encountered; a duplicate queue name is always an error,
// never an overwrite.
func New(regs ...Registration) (*Registry, error) {
	r := &Registry{entries: make(map[string]*Entry, len(regs))}
	for i, reg := range regs {
		entry, err := resolve(reg)
		if err != nil {
			return nil, fmt.Errorf("registration %d: %w", i, err)
		}
		if existing, ok := r.entries[entry.QueueName]; ok {
			return nil, fmt.Errorf("%w: %q (handlers %T and %T)",
				core.ErrDuplicateQueueName, entry.QueueName, existing.Handler, entry.Handler)
		}
		r.entries[entry.QueueName] = entry
	}
	return r, nil
}

// MustNew is like New but panics on error. Intended for process start-up.
func MustNew(regs ...Registration) *Registry {
	r, err := New(regs...)
	if err != nil {
		panic(fmt.Sprintf("jobqueue: %v", err))
	}
	return r
}

func resolve(reg Registration) (*Entry, error) {
	if reg.Handler == nil {
		return nil, core.ErrNilHandler
	}
	if fn, ok := reg.Handler.(HandlerFunc); ok && fn == nil {
		return nil, core.ErrNilHandler
	}

	name := reg.Config.QueueName
	if name == "" {
		if namer, ok := reg.Handler.(QueueNamer); ok {
			name = namer.QueueName()
		}
	}
	if name == "" {
		return nil, fmt.Errorf("%w: %T", core.ErrMissingQueueName, reg.Handler)
	}
	if err := security.ValidateQueueName(name); err != nil {
		return nil, fmt.Errorf("queue %q: %w", name, err)
	}

	priority := reg.Config.Priority
	if priority == 0 {
		priority = core.DefaultPriority
	}

	return &Entry{
		QueueName:   name,
		Handler:     reg.Handler,
		Priority:    priority,
		Description: reg.Config.Description,
	}, nil
}

// Lookup returns the entry registered for queueName.
func (r *Registry) Lookup(queueName string) (*Entry, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.entries[queueName]
	return e, ok
}

// Handler returns the handler registered for queueName or core.ErrUnknownQueue.
func (r *Registry) Handler(queueName string) (Handler, error) {
	e, ok := r.Lookup(queueName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownQueue, queueName)
	}
	return e.Handler, nil
}

// Len returns the number of registered queues.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Names returns the registered queue names in lexical order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns all entries ordered by priority descending, then name.
func (r *Registry) Entries() []*Entry {
	if r == nil {
		return nil
	}
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].QueueName < entries[j].QueueName
	})
	return entries
}

// Builder accumulates registrations and reports every error at Build.
type Builder struct {
	regs []Registration
	errs []error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add registers h under cfg.
func (b *Builder) Add(h Handler, cfg Config) *Builder {
	b.regs = append(b.regs, Registration{Handler: h, Config: cfg})
	return b
}

// AddFunc registers fn under queueName.
func (b *Builder) AddFunc(queueName string, fn func(ctx context.Context, actorID string) error) *Builder {
	if fn == nil {
		b.errs = append(b.errs, fmt.Errorf("queue %q: %w", queueName, core.ErrNilHandler))
		return b
	}
	return b.Add(HandlerFunc(fn), Config{QueueName: queueName})
}

// Build validates the accumulated registrations.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return New(b.regs...)
}
