// Package reaper guarantees that transient files created during a run are
// deleted exactly once, whatever path the run took.
package reaper

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/spherical/pptx-builder/internal/domain"
)

// Registry is the run-owned list of transient artifacts.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	paths []domain.TransientArtifact
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register records a transient path. Empty paths are ignored.
func (r *Registry) Register(path domain.TransientArtifact) {
	if path == "" {
		return
	}
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

// Paths returns a snapshot of the registered paths in registration order.
func (r *Registry) Paths() []domain.TransientArtifact {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.TransientArtifact, len(r.paths))
	copy(out, r.paths)
	return out
}

// Len returns the number of registered paths not yet reaped.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// Cleanup deletes every registered path, newest first, and drains the
// registry. Directories registered before the files inside them are
// therefore removed after their contents. Calling Cleanup again is a no-op.
func (r *Registry) Cleanup() error {
	r.mu.Lock()
	paths := r.paths
	r.paths = nil
	r.mu.Unlock()

	reversed := make([]domain.TransientArtifact, len(paths))
	for i, p := range paths {
		reversed[len(paths)-1-i] = p
	}
	return Cleanup(reversed)
}

// Cleanup deletes each path in order. Missing paths are not an error.
// Every path is attempted; failures are collected into a single
// cleanup error.
func Cleanup(paths []domain.TransientArtifact) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return domain.CleanupError(
		fmt.Sprintf("failed to remove %d of %d transient files", len(errs), len(paths)),
		errors.Join(errs...))
}
