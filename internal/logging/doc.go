// Package logging assembles structured slog loggers and formatting helpers used
// across deliver.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code can automatically tag log
// lines with run IDs, project names, and stages. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
//
// The CLI builds one logger per process and hands it to every component
// explicitly; nothing in this package keeps global state.
package logging
