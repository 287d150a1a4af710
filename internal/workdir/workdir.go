// Package workdir scopes changes to the process-wide current directory.
//
// Run and Within take a unit of work and a path, switch into the path for the
// duration of the work, and always switch back. Scopes nest: an inner scope
// restores to the outer scope's directory, not the directory the process
// started in.
//
// The current directory is shared by the whole process, so scopes must not be
// entered from concurrent goroutines.
package workdir

import (
	"errors"
	"fmt"
	"os"
)

// Run executes fn with the current directory set to dir and restores the
// previous directory afterwards, including when fn returns an error or
// panics. A restore failure is returned only when fn succeeded.
func Run(dir string, fn func() error) error {
	_, err := Within(dir, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Within is Run for work that produces a value.
func Within[T any](dir string, fn func() (T, error)) (result T, err error) {
	if dir == "" {
		return result, errors.New("workdir: empty directory")
	}
	previous, err := os.Getwd()
	if err != nil {
		return result, fmt.Errorf("workdir: resolve current directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return result, fmt.Errorf("workdir: enter %s: %w", dir, err)
	}
	defer func() {
		if restoreErr := os.Chdir(previous); restoreErr != nil && err == nil {
			err = fmt.Errorf("workdir: restore %s: %w", previous, restoreErr)
		}
	}()
	return fn()
}
