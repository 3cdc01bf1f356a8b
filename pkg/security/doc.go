// Package security provides validation, sanitization, and limits for the jobqueue packages.
//
// This package includes:
//   - Input validation for queue names and actor ids
//   - Error message sanitization before messages are persisted on job rows
//   - Clamping functions to enforce safe limits on attempts and concurrency
//
// Most users should import the root package github.com/printshop/jobqueue
// which re-exports these functions.
package security
