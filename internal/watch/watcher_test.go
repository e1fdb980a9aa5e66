package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pptx-builder/internal/domain"
)

func startWatcher(t *testing.T, dir string) <-chan struct{} {
	t.Helper()
	w, err := New([]string{dir}, 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	builds := make(chan struct{}, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(context.Context) error {
			builds <- struct{}{}
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return builds
}

func TestWatcher_RebuildsOnImageChange(t *testing.T) {
	dir := t.TempDir()
	builds := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "slide-1.png"), []byte("x"), 0o644))

	select {
	case <-builds:
	case <-time.After(3 * time.Second):
		t.Fatal("no rebuild after image change")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	builds := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("x"), 0o644))

	select {
	case <-builds:
		t.Fatal("rebuild triggered by an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, 0, nil)
	assert.Equal(t, domain.ErrorKindInvalidConfig, domain.KindOf(err))

	_, err = New([]string{filepath.Join(t.TempDir(), "missing")}, 0, nil)
	assert.Equal(t, domain.ErrorKindInvalidConfig, domain.KindOf(err))
}

func TestRelevant(t *testing.T) {
	assert.True(t, relevant(fsnotify.Event{Name: "/d/a.PNG", Op: fsnotify.Write}))
	assert.True(t, relevant(fsnotify.Event{Name: "/d/a.jpg", Op: fsnotify.Remove}))
	assert.False(t, relevant(fsnotify.Event{Name: "/d/a.jpg", Op: fsnotify.Chmod}))
	assert.False(t, relevant(fsnotify.Event{Name: "/d/.deck.pptx.tmp-1", Op: fsnotify.Create}))
	assert.False(t, relevant(fsnotify.Event{Name: "/d/deck.pptx", Op: fsnotify.Create}))
}
