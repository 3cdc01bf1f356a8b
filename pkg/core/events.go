package core

import "time"

// Event is the interface for all queue events.
type Event interface {
	eventMarker()
}

// JobStarted is emitted after a job is leased, right before its handler runs.
type JobStarted struct {
	Job       *Job
	WorkerID  string
	Timestamp time.Time
}

func (*JobStarted) eventMarker() {}

// JobCompleted is emitted when a job completes successfully.
type JobCompleted struct {
	Job       *Job
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobCompleted) eventMarker() {}

// JobFailed is emitted when a job fails permanently.
type JobFailed struct {
	Job       *Job
	Reason    string
	Error     error
	Timestamp time.Time
}

func (*JobFailed) eventMarker() {}

// JobRetrying is emitted when a job is released for another attempt.
type JobRetrying struct {
	Job       *Job
	Attempt   int
	Error     error
	NextRunAt time.Time
	Timestamp time.Time
}

func (*JobRetrying) eventMarker() {}

// LeasesReclaimed is emitted when the reclamation sweep unlocked abandoned jobs.
type LeasesReclaimed struct {
	Count     int64
	WorkerID  string
	Timestamp time.Time
}

func (*LeasesReclaimed) eventMarker() {}
