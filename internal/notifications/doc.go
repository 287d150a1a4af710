// Package notifications publishes delivery run outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Only run-level events are sent; per-project
// progress stays in the log stream.
package notifications
