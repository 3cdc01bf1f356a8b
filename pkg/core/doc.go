// Package core provides the fundamental types and interfaces for the jobqueue packages.
//
// This package contains:
//   - The Job model with GORM annotations that define the persisted schema
//   - The Store interface: the version-guarded persistence contract
//   - Event types for queue monitoring
//   - The Failure error type handlers use to classify errors
//
// Most users should import the root package github.com/printshop/jobqueue
// instead of this package directly.
package core
