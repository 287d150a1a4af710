// Package manifest loads and validates delivery manifests.
//
// A manifest names a workspace, a package name and version, the projects to
// fetch (git URL plus tag or branch) and, per project, how to build it and
// which binaries to collect. TOML is the primary format; YAML is accepted for
// files ending in .yaml or .yml.
//
// Validation happens entirely up front so configuration mistakes surface
// before any directory is created or any repository is cloned.
package manifest
