// Package main hosts the deliver CLI entrypoint and command graph.
//
// The Cobra command tree loads the tool configuration once, builds the
// structured logger, and hands manifests to the delivery pipeline. Besides
// running deliveries it validates manifests with preflight checks, prints
// artifact digests, and renders the run history kept in the ledger.
//
// Keep this package lean: behaviour belongs in the internal packages and is
// only surfaced here.
package main
