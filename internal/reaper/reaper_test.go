package reaper

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pptx-builder/internal/domain"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestRegistry_CleanupRemovesAll(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()

	for i := 0; i < 5; i++ {
		p := filepath.Join(dir, fmt.Sprintf("a%d.png", i))
		touch(t, p)
		r.Register(p)
	}
	require.Equal(t, 5, r.Len())

	require.NoError(t, r.Cleanup())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_CleanupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()

	p := filepath.Join(dir, "a.png")
	touch(t, p)
	r.Register(p)
	// Registered twice, and a path that never existed.
	r.Register(p)
	r.Register(filepath.Join(dir, "missing.png"))

	require.NoError(t, r.Cleanup())
	require.NoError(t, r.Cleanup())
	assert.NoFileExists(t, p)
}

func TestRegistry_CleanupRemovesDirAfterContents(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "run")
	require.NoError(t, os.Mkdir(runDir, 0o755))

	r := NewRegistry()
	r.Register(runDir)
	for i := 0; i < 3; i++ {
		p := filepath.Join(runDir, fmt.Sprintf("s%d.png", i))
		touch(t, p)
		r.Register(p)
	}

	require.NoError(t, r.Cleanup())
	assert.NoDirExists(t, runDir)
}

func TestCleanup_CollectsAllFailures(t *testing.T) {
	root := t.TempDir()

	// Non-empty directories cannot be removed with os.Remove.
	bad1 := filepath.Join(root, "bad1")
	bad2 := filepath.Join(root, "bad2")
	for _, d := range []string{bad1, bad2} {
		require.NoError(t, os.Mkdir(d, 0o755))
		touch(t, filepath.Join(d, "keep"))
	}
	good := filepath.Join(root, "good.png")
	touch(t, good)

	err := Cleanup([]string{bad1, good, bad2})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindCleanup, domain.KindOf(err))
	assert.Contains(t, err.Error(), "2 of 3")
	assert.NoFileExists(t, good, "later paths must still be attempted")
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("/nonexistent/%d", i))
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.Paths(), 50)
	assert.NoError(t, r.Cleanup())
}
