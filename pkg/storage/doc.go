// Package storage provides the GORM implementation of the job store.
//
// This package includes:
//   - GormStorage: the version-guarded job store for SQLite and PostgreSQL
//   - Open / Dialector: connect from a database URL
//   - PoolConfig: connection pool tuning
//
// The Store interface is defined in pkg/core. Every write after Enqueue is a
// compare-and-set on the version column, which is the only thing that keeps two
// dispatchers from running the same job.
//
// Most users should import the root package github.com/printshop/jobqueue
// which provides NewGormStorage() to create storage instances.
package storage
