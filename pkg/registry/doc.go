// Package registry maps queue names to the handler that processes them.
//
// A registry is built once at process start from an explicit list of
// registrations and is read-only afterwards:
//
//	reg, err := registry.New(
//	    registry.Registration{
//	        Handler: handlers.NewOrderEmailHandler(orders, sender),
//	        Config:  registry.Config{Priority: 7, Description: "order confirmation email"},
//	    },
//	)
//
// Each queue name binds to exactly one handler. Registering two handlers under
// the same name fails with core.ErrDuplicateQueueName and should abort startup.
package registry
