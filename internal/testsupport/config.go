package testsupport

import (
	"path/filepath"
	"testing"

	"deliver/internal/config"
)

// ConfigOption adjusts a generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns the default configuration with its state directory
// moved under a per-test temp dir.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(t.TempDir(), "state")
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithTools points the git and tar tool settings at the given executables.
func WithTools(git, tar string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tools.Git = git
		cfg.Tools.Tar = tar
	}
}

// BaseDir returns the temp directory that holds the config's state dir.
// Tests put workspaces and fixtures beside it.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
