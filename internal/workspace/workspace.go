// Package workspace manages the on-disk layout of a delivery run: the
// workspace root, one checkout directory per project, the package directory
// and the advisory lock that keeps concurrent runs apart.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"deliver/internal/services"
)

// LockFileName is created inside the workspace root while a run holds it.
const LockFileName = ".deliver.lock"

var (
	// ErrPackageExists reports a package directory left by an earlier run.
	ErrPackageExists = errors.New("package directory already exists")
	// ErrCheckoutExists reports a project checkout left by an earlier run.
	ErrCheckoutExists = errors.New("checkout directory already exists")
	// ErrBusy reports that another run holds the workspace lock.
	ErrBusy = errors.New("workspace is locked by another run")
)

// Workspace is a resolved workspace root.
type Workspace struct {
	root string
}

// New returns a workspace rooted at root. The root is not created.
func New(root string) (*Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "resolve", "workspace path is empty", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "resolve", root, err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace path.
func (w *Workspace) Root() string {
	return w.root
}

// Ensure creates the workspace root if it does not exist yet.
func (w *Workspace) Ensure() error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return services.Wrap(services.ErrFilesystem, "workspace", "create", w.root, err)
	}
	return nil
}

// ProjectDir returns the checkout directory for a project.
func (w *Workspace) ProjectDir(name string) string {
	return filepath.Join(w.root, name)
}

// PackageDir returns the package directory for name ("{package}.{version}").
func (w *Workspace) PackageDir(name string) string {
	return filepath.Join(w.root, name)
}

// CheckPackageAbsent fails with ErrPackageExists when the package directory
// is already present.
func (w *Workspace) CheckPackageAbsent(name string) error {
	dir := w.PackageDir(name)
	_, err := os.Lstat(dir)
	switch {
	case err == nil:
		return services.Wrap(services.ErrConfiguration, "workspace", "package", dir, ErrPackageExists)
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return services.Wrap(services.ErrFilesystem, "workspace", "package", dir, err)
	}
}

// CheckCheckoutsAbsent fails with ErrCheckoutExists naming every project
// whose checkout directory is already present.
func (w *Workspace) CheckCheckoutsAbsent(names []string) error {
	var present []string
	for _, name := range names {
		dir := w.ProjectDir(name)
		_, err := os.Lstat(dir)
		switch {
		case err == nil:
			present = append(present, dir)
		case errors.Is(err, os.ErrNotExist):
		default:
			return services.Wrap(services.ErrFilesystem, "workspace", "checkout", dir, err)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "workspace", "checkout", strings.Join(present, ", "), ErrCheckoutExists)
}

// CreatePackageDir creates the package directory. It never reuses an
// existing directory.
func (w *Workspace) CreatePackageDir(name string) (string, error) {
	dir := w.PackageDir(name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", services.Wrap(services.ErrConfiguration, "workspace", "package", dir, ErrPackageExists)
		}
		return "", services.Wrap(services.ErrFilesystem, "workspace", "package", dir, err)
	}
	return dir, nil
}

// Lock is a held workspace lock.
type Lock struct {
	path  string
	flock *flock.Flock
}

// Lock takes the workspace lock without blocking. The workspace root must
// exist.
func (w *Workspace) Lock() (*Lock, error) {
	path := filepath.Join(w.root, LockFileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "workspace", "lock", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "lock", path, ErrBusy)
	}
	return &Lock{path: path, flock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks the workspace. The lock file is left in place.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release workspace lock: %w", err)
	}
	return nil
}
