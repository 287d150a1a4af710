// Package ledger keeps a SQLite history of delivery runs and the digests of
// every artifact they packaged.
//
// Runs are keyed by UUID. A run row is inserted with status "running" before
// any project is fetched and is finished exactly once with "succeeded" or
// "failed". Artifact rows reference their run and are written as each binary
// is copied, so a failed run still lists what it packaged before failing.
//
// The schema is applied from embedded, ordered SQL migrations tracked in a
// schema_migrations table. Writes retry briefly on SQLITE_BUSY so concurrent
// runs against different workspaces can share one ledger.
package ledger
