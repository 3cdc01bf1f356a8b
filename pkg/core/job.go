package core

import (
	"time"
)

// DefaultPriority is used when neither the caller nor the handler registration
// supplies a priority.
const DefaultPriority = 5

// State is the derived lifecycle state of a job. It is not persisted; it is
// computed from the Locked / Complete / CompletedWithFailure columns.
type State string

const (
	StatePending         State = "pending"
	StateLeased          State = "leased"
	StateCompleteSuccess State = "complete_success"
	StateCompleteFailure State = "complete_failure"
)

// Job is a unit of deferred work tied to a domain actor. One row in the jobs table.
//
// Index tags reproduce the persisted schema: a composite index for eligible-job
// scans, a partial index on leased rows for the reclamation sweep, and a partial
// index on failed_at for failure monitoring.
type Job struct {
	ID                   string     `gorm:"primaryKey;size:36" json:"id"`
	Priority             int        `gorm:"not null" json:"priority"`
	Attempts             int        `gorm:"not null" json:"attempts"`
	QueueName            string     `gorm:"size:255;not null;index:idx_jobs_eligible,priority:1" json:"queue_name"`
	ActorID              string     `gorm:"size:255;not null" json:"actor_id"`
	LastError            string     `gorm:"type:text" json:"last_error,omitempty"`
	RunAt                time.Time  `gorm:"not null;index:idx_jobs_eligible,priority:2" json:"run_at"`
	Locked               bool       `gorm:"not null;index:idx_jobs_eligible,priority:4;index:idx_jobs_locked,where:locked = true" json:"locked"`
	LockedAt             *time.Time `json:"locked_at,omitempty"`
	FailedAt             *time.Time `gorm:"index:idx_jobs_failed_at,where:failed_at IS NOT NULL" json:"failed_at,omitempty"`
	Complete             bool       `gorm:"not null;index:idx_jobs_eligible,priority:3" json:"complete"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CompletedWithFailure bool       `gorm:"not null" json:"completed_with_failure"`
	FailureReason        string     `gorm:"type:text" json:"failure_reason,omitempty"`
	Created              time.Time  `gorm:"not null" json:"created"`
	Updated              time.Time  `gorm:"not null" json:"updated"`
	Version              int64      `gorm:"not null" json:"version"`
}

// TableName pins the table name; the schema is shared with other deployments.
func (Job) TableName() string {
	return "jobs"
}

// State derives the lifecycle state from the stored flags.
func (j *Job) State() State {
	switch {
	case j.Complete && j.CompletedWithFailure:
		return StateCompleteFailure
	case j.Complete:
		return StateCompleteSuccess
	case j.Locked:
		return StateLeased
	default:
		return StatePending
	}
}

// Eligible reports whether the job may be selected by a dispatcher at now.
func (j *Job) Eligible(now time.Time) bool {
	return !j.Complete && !j.Locked && !j.RunAt.After(now)
}

// Terminal reports whether the job reached COMPLETE_SUCCESS or COMPLETE_FAILURE.
func (j *Job) Terminal() bool {
	return j.Complete
}
