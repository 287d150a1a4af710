// Package config loads, normalizes, and validates deliver's tool configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the DELIVER_VERBOSE environment
// toggle. The Config type covers the knobs that are not part of a delivery
// manifest: where run state lives, which external tools to invoke, pipeline
// timeouts, and log output.
//
// Manifests describe what to package; this package describes how the tool
// behaves on a given machine.
package config
