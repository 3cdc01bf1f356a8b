// Package queue provides the enqueue API and the lifecycle hooks the
// dispatcher reports through.
//
// This package includes:
//   - Queue: validates and inserts jobs, holds recurring schedules
//   - Option: Priority, At and Delay for individual enqueues
//   - Hook registration for job lifecycle events
//   - Event subscription for monitoring
//
// Most users should import the root package github.com/printshop/jobqueue
// which re-exports Queue and all option functions.
package queue
