// Package watch re-runs an action when a file changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonaddams/document-generator/internal/logging"
)

// DefaultDebounce batches the burst of events an editor produces on save.
const DefaultDebounce = 300 * time.Millisecond

// File watches a single file. The parent directory is watched so saves that
// replace the file through a rename are seen too.
type File struct {
	path     string
	debounce time.Duration
	logger   logging.Logger
	watcher  *fsnotify.Watcher
}

// NewFile starts watching path.
func NewFile(path string, debounce time.Duration, logger logging.Logger) (*File, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &File{path: abs, debounce: debounce, logger: logger, watcher: w}, nil
}

// Path returns the absolute path being watched.
func (f *File) Path() string { return f.path }

// Run calls onChange once per debounced burst of changes until ctx is
// cancelled. Errors from onChange are logged and do not stop the loop.
// The watcher is closed when Run returns.
func (f *File) Run(ctx context.Context, onChange func(context.Context) error) error {
	defer f.watcher.Close()

	timer := time.NewTimer(f.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if !f.relevant(ev) {
				continue
			}
			f.logger.Debug("file event", map[string]any{"path": ev.Name, "op": ev.Op.String()})
			timer.Reset(f.debounce)

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("watch error", map[string]any{"path": f.path, "error": err})

		case <-timer.C:
			if err := onChange(ctx); err != nil {
				f.logger.Error("change handler failed", map[string]any{"path": f.path, "error": err})
			}
		}
	}
}

func (f *File) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != f.path {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
