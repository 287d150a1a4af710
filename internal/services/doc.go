// Package services defines shared utilities consumed by the delivery pipeline
// and the collaborators it drives.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, project names, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (configuration, external tool, filesystem, integrity, timeout).
//
// Use these helpers when wiring new pipeline steps so error reporting and
// observability stay uniform across the run.
package services
