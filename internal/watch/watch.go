// Package watch re-runs work whenever a single file on disk changes.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/project-agent/project-agent/internal/logging"
)

// DefaultDebounce is used when a non-positive debounce is requested.
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher reports changes to one file. Editors often replace a file
// instead of writing it in place, so the parent directory is watched and
// events are filtered by name.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	logger   *logging.Logger

	closeOnce sync.Once
}

// New starts watching path. The file itself does not need to exist yet.
func New(path string, debounce time.Duration, logger *logging.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}

	return &FileWatcher{
		watcher:  w,
		path:     abs,
		debounce: debounce,
		logger:   logger.With("path", abs),
	}, nil
}

// Path returns the absolute path being watched.
func (fw *FileWatcher) Path() string {
	return fw.path
}

// Run calls onChange once per burst of write/create/rename events on the
// watched file. It blocks until ctx is done or the watcher is closed.
func (fw *FileWatcher) Run(ctx context.Context, onChange func()) error {
	// Many editors emit several events for a single save.
	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.logger.Debug("file event", "op", event.Op.String())
			pending = true
			timer.Reset(fw.debounce)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			onChange()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				fw.logger.Warn("watch event overflow", "error", err)
				continue
			}
			fw.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops the underlying watcher. It is safe to call more than once.
func (fw *FileWatcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}
