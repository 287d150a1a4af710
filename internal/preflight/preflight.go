package preflight

import (
	"path/filepath"

	"deliver/internal/archive"
	"deliver/internal/config"
	"deliver/internal/manifest"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional results are reported but never block a run.
	Optional bool
}

// RunAll executes all applicable preflight checks for a manifest under the
// given config. Checks are only run when the corresponding feature is enabled.
func RunAll(cfg *config.Config, m *manifest.Manifest) []Result {
	if cfg == nil || m == nil {
		return nil
	}

	var results []Result
	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, fromStatus(status))
	}

	results = append(results, CheckCreatableDirectory("Workspace", m.Workspace))
	results = append(results, CheckAbsent("Package directory", m.PackageDir()))
	if cfg.Pipeline.Archive {
		results = append(results, CheckAbsent("Archive", archive.PathFor(m.PackageDir())))
	}
	for _, name := range m.ProjectNames() {
		results = append(results, CheckAbsent("Checkout "+name, filepath.Join(m.Workspace, name)))
	}
	if cfg.Pipeline.Ledger {
		results = append(results, CheckCreatableDirectory("State directory", cfg.Paths.StateDir))
	}
	return results
}

// Blocking returns the failed results that should stop a run.
func Blocking(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed && !result.Optional {
			failed = append(failed, result)
		}
	}
	return failed
}
