// Package admin serves a read-only JSON view of the job table for operators.
//
// Routes:
//
//	GET /health
//	GET /jobs?state=incomplete|failed&limit=N
//	GET /jobs/{id}
//	GET /queues
//	GET /stats      (when the store can count jobs per queue)
//
// It never mutates jobs; retrying or cancelling work is done by enqueueing.
package admin
