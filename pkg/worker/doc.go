// Package worker provides the dispatcher that executes queued jobs.
//
// Each poll cycle:
//  1. reclaims leases older than LeaseTimeout (ReapExpiredLocks)
//  2. fetches up to min(BatchSize, free slots) eligible jobs
//  3. leases each with a version-checked TryLock, skipping lost races
//  4. runs the leased job's handler in a bounded slot and records the outcome
//
// Outcomes: success completes the job; a permanent failure (core.Permanent,
// core.NoRetry) or an unknown queue name completes it with failure; anything
// else, including a handler panic, is retried with exponential backoff until
// MaxAttempts is reached.
//
// Delivery is at-least-once. A handler that outlives LeaseTimeout can be run
// again by another worker; its own outcome write is then rejected as stale.
//
// Most users should import the root package github.com/printshop/jobqueue
// which provides access to worker configuration through queue.NewWorker().
package worker
