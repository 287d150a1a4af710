// Package pipeline orchestrates a delivery run.
//
// Run takes a validated manifest and, with the process pinned to the
// workspace, clones every project at its pinned ref, runs its builder in the
// checkout, digests and copies the declared binaries into
// {workspace}/{package}.{version}/{project}/, and finally archives the
// package directory. Projects are processed one at a time in sorted name
// order. The first fatal error stops the run; whatever was already packaged
// stays on disk and is listed in the returned Report.
package pipeline
