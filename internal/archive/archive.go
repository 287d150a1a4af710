// Package archive compresses a package directory into a tarball using the
// system tar.
package archive

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
)

// Extension is appended to the package directory name.
const Extension = ".tar.gz"

// ErrArchiveExists reports an archive left by an earlier run.
var ErrArchiveExists = errors.New("archive already exists")

// Archiver creates gzip-compressed tarballs of package directories.
type Archiver struct {
	tar     string
	timeout time.Duration
	runner  *runner.Runner
	logger  *slog.Logger
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithTarBinary overrides the tar executable.
func WithTarBinary(binary string) Option {
	return func(a *Archiver) {
		if binary = strings.TrimSpace(binary); binary != "" {
			a.tar = binary
		}
	}
}

// WithTimeout bounds the tar invocation; zero disables the limit.
func WithTimeout(timeout time.Duration) Option {
	return func(a *Archiver) {
		a.timeout = timeout
	}
}

// New constructs an Archiver.
func New(r *runner.Runner, logger *slog.Logger, opts ...Option) *Archiver {
	a := &Archiver{
		tar:    "tar",
		runner: r,
		logger: logging.NewComponentLogger(logger, "archive"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PathFor returns the archive path for a package directory.
func PathFor(packageDir string) string {
	return filepath.Clean(packageDir) + Extension
}

// Create archives packageDir into a sibling "{base}.tar.gz" holding the full
// directory tree under "{base}/". An existing archive is never overwritten.
func (a *Archiver) Create(ctx context.Context, packageDir string) (string, error) {
	packageDir = filepath.Clean(packageDir)
	info, err := os.Stat(packageDir)
	if err != nil {
		return "", services.Wrap(services.ErrFilesystem, "archive", "stat", packageDir, err)
	}
	if !info.IsDir() {
		return "", services.Wrap(services.ErrFilesystem, "archive", "stat", packageDir, errors.New("not a directory"))
	}

	target := PathFor(packageDir)
	if _, err := os.Lstat(target); err == nil {
		return "", services.Wrap(services.ErrFilesystem, "archive", "create", target, ErrArchiveExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", services.Wrap(services.ErrFilesystem, "archive", "create", target, err)
	}

	parent := filepath.Dir(packageDir)
	base := filepath.Base(packageDir)
	cmd := runner.Argv(a.tar, "-C", parent, "-czf", target, base)
	opts := runner.DefaultOptions()
	opts.Timeout = a.timeout

	logging.WithContext(ctx, a.logger).Info("archiving package",
		logging.String("package_dir", packageDir),
		logging.String("archive", target),
	)
	if err := a.runner.Execute(ctx, cmd, opts).Err(); err != nil {
		_ = os.Remove(target)
		return "", services.Wrap(services.ErrExternalTool, "archive", "tar", base, err)
	}
	if _, err := os.Stat(target); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "archive", "tar", target, fmt.Errorf("archive missing after tar: %w", err))
	}
	return target, nil
}
