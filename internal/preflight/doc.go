// Package preflight provides readiness checks for the external programs and
// filesystem paths a delivery run depends on.
//
// "deliver check" prints every result; "deliver run" refuses to start when a
// required check fails. Checks only inspect state, they never create
// directories.
package preflight
