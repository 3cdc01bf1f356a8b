package queue

import (
	"time"
)

// Options holds the per-enqueue settings.
type Options struct {
	Priority    int
	prioritySet bool
	Delay       time.Duration
	RunAt       *time.Time
}

// NewOptions applies opts to a zero Options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt.Apply(o)
	}
	return o
}

// HasPriority reports whether a Priority option was supplied.
func (o *Options) HasPriority() bool {
	return o.prioritySet
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// Priority sets the job priority (higher = runs first). Without it the job
// takes the priority its queue was registered with.
func Priority(p int) Option {
	return optionFunc(func(o *Options) {
		o.Priority = p
		o.prioritySet = true
	})
}

// Delay schedules the job to run after a duration.
func Delay(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.Delay = d
	})
}

// At schedules the job to run at a specific time. At wins over Delay.
func At(t time.Time) Option {
	return optionFunc(func(o *Options) {
		o.RunAt = &t
	})
}
