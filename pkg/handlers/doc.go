// Package handlers contains the customer notification handlers of the order
// system: the order confirmation email, the shipment notice and the
// cancellation notice.
//
// Each job's actor id is an order id. Handlers reload the order when they run,
// so a job enqueued before a state change sees the current row. A missing order
// or an order in the wrong state fails the job permanently; mail transport
// errors are retried.
//
//	reg, err := registry.New(handlers.Registrations(handlers.NewGormOrderFinder(db), sender)...)
package handlers
