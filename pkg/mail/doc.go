// Package mail sends the customer notifications produced by the bundled
// handlers. Postmark is the production transport; LogSender writes messages to
// a logger for local runs.
package mail
