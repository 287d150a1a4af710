// Package fetch clones project sources into the workspace.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deliver/internal/logging"
	"deliver/internal/runner"
	"deliver/internal/services"
	"deliver/internal/workdir"
	"deliver/internal/workspace"
)

// ErrCheckoutExists reports a checkout directory that would be overwritten.
var ErrCheckoutExists = workspace.ErrCheckoutExists

// Fetcher performs shallow single-ref clones anchored at a workspace.
type Fetcher struct {
	workspace string
	git       string
	timeout   time.Duration
	runner    *runner.Runner
	logger    *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithGitBinary overrides the git executable.
func WithGitBinary(binary string) Option {
	return func(f *Fetcher) {
		if binary = strings.TrimSpace(binary); binary != "" {
			f.git = binary
		}
	}
}

// WithTimeout bounds each clone; zero disables the limit.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// New constructs a Fetcher for the given workspace root.
func New(workspace string, r *runner.Runner, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		workspace: workspace,
		git:       "git",
		runner:    r,
		logger:    logging.NewComponentLogger(logger, "fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Clone checks out ref of repoURL into {workspace}/{name} and returns the
// checkout path. Only the single ref is fetched, with depth one.
func (f *Fetcher) Clone(ctx context.Context, name, repoURL, ref string) (string, error) {
	if err := checkDestination(name); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "fetch", "clone", name, err)
	}
	if strings.TrimSpace(repoURL) == "" || strings.TrimSpace(ref) == "" {
		return "", services.Wrap(services.ErrConfiguration, "fetch", "clone", name, errors.New("repository url and ref are required"))
	}

	dest := filepath.Join(f.workspace, name)
	if _, err := os.Lstat(dest); err == nil {
		return "", services.Wrap(services.ErrFilesystem, "fetch", "clone", dest, ErrCheckoutExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", services.Wrap(services.ErrFilesystem, "fetch", "clone", dest, err)
	}

	logger := logging.WithContext(ctx, f.logger)
	logger.Info("cloning project",
		logging.String("url", repoURL),
		logging.String("ref", ref),
		logging.String("destination", dest),
	)

	cmd := runner.Argv(f.git, "clone", "--depth", "1", "--single-branch", "--branch", ref, "--", repoURL, name)
	opts := runner.DefaultOptions()
	opts.Timeout = f.timeout

	err := workdir.Run(f.workspace, func() error {
		return f.runner.Execute(ctx, cmd, opts).Err()
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "fetch", "clone", fmt.Sprintf("%s@%s", name, ref), err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "fetch", "clone", dest, fmt.Errorf("checkout missing after clone: %w", err))
	}
	if !info.IsDir() {
		return "", services.Wrap(services.ErrExternalTool, "fetch", "clone", dest, errors.New("checkout is not a directory"))
	}
	return dest, nil
}

func checkDestination(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("destination name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("destination %q is not a valid name", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("destination %q must not contain path separators", name)
	}
	return nil
}
