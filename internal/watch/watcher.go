// Package watch rebuilds a document when the images in its source
// directories change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spherical/pptx-builder/internal/domain"
	"github.com/spherical/pptx-builder/internal/observability"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// RebuildFunc runs one build. Its error is logged and watching continues.
type RebuildFunc func(ctx context.Context) error

// Watcher monitors directories for image changes.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   *observability.Logger
}

// New watches dirs. A non-positive debounce uses DefaultDebounce.
func New(dirs []string, debounce time.Duration, logger *observability.Logger) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, domain.ConfigError("watch requires at least one directory", nil)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = observability.Nop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, domain.ConfigError(fmt.Sprintf("failed to watch folder %s", dir), err)
		}
		logger.Info().Str("dir", dir).Msg("Watching folder")
	}

	return &Watcher{fs: fsw, debounce: debounce, logger: logger.WithComponent("watch")}, nil
}

// Run calls rebuild after each settled burst of image changes until ctx is
// done. Bursts that arrive while a rebuild runs trigger one more rebuild.
func (w *Watcher) Run(ctx context.Context, rebuild RebuildFunc) error {
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Change detected")
			timer.Reset(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			if err := rebuild(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("Rebuild failed")
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

// relevant keeps content changes to visible image files.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return imageExtensions[strings.ToLower(filepath.Ext(base))]
}
