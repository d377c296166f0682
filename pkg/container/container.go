// Package container manages the on-disk CI container directory: cache
// directories shared between steps and the failure count for the run.
//
// Toolchain activation and environment merging live in the shell-side
// scripts; this package only covers what the execution core needs.
package container

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Container is a directory that holds the caches for a CI run and keeps
// count of failed steps.
type Container struct {
	dir      string
	cacheDir string
	failures int

	// exit terminates the process on an instant failure. Replaceable for
	// tests.
	exit func(status int)
}

// New creates (if necessary) and opens the container rooted at directory.
func New(directory string) (*Container, error) {
	dir, err := filepath.Abs(directory)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve container directory %s", directory)
	}

	cacheDir := filepath.Join(dir, "_cache")
	if err := os.MkdirAll(cacheDir, os.FileMode(0755)); err != nil {
		return nil, eris.Wrapf(err, "failed to create cache directory %s", cacheDir)
	}

	return &Container{dir: dir, cacheDir: cacheDir, exit: os.Exit}, nil
}

// Path returns the container's root directory.
func (c *Container) Path() string {
	return c.dir
}

// NamedCacheDir returns a directory called name inside the cache,
// creating it if necessary.
func (c *Container) NamedCacheDir(name string) (string, error) {
	path := filepath.Join(c.cacheDir, name)
	if err := os.MkdirAll(path, os.FileMode(0755)); err != nil {
		return "", eris.Wrapf(err, "failed to create cache directory %s", path)
	}

	return path, nil
}

// TempCacheDir creates a temporary directory inside the cache and returns
// it along with a cleanup function that removes it again.
func (c *Container) TempCacheDir() (string, func(), error) {
	path, err := os.MkdirTemp(c.cacheDir, "tmp")
	if err != nil {
		return "", nil, eris.Wrap(err, "failed to create temporary cache directory")
	}

	return path, func() { os.RemoveAll(path) }, nil
}

// NoteFailure records a failed step. With instantFail set the whole
// process terminates immediately, using the failure count as exit status.
func (c *Container) NoteFailure(instantFail bool) {
	c.failures++

	if instantFail {
		c.exit(c.failures)
	}
}

// ReturnCode is the exit status for the run: the number of noted failures.
func (c *Container) ReturnCode() int {
	return c.failures
}

// ResetFailures clears the failure count.
func (c *Container) ResetFailures() {
	c.failures = 0
}
