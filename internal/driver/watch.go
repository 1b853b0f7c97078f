package driver

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DuckSoft/gradir/internal/logging"
)

// Watcher reruns an action whenever a source file changes.
type Watcher struct {
	log      *logging.Logger
	debounce time.Duration
}

func NewWatcher(log *logging.Logger, debounce time.Duration) *Watcher {
	return &Watcher{log: log, debounce: debounce}
}

// Watch runs action once, then again after every change to path, until the
// context is cancelled. Editors produce bursts of events for a single save,
// so changes are debounced. Action errors are logged, not returned: a bad
// intermediate save should not end the watch.
func (w *Watcher) Watch(ctx context.Context, path string, action func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors that save via
	// rename replace the watched inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	if err := action(ctx); err != nil {
		w.log.Error("processing failed", "file", path, "error", err)
	}

	timer := time.NewTimer(0)
	<-timer.C // drain initial timer

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			w.log.Debug("change detected", "file", path)
			timer.Reset(w.debounce)

		case <-timer.C:
			w.log.Info("reprocessing", "file", path)
			if err := action(ctx); err != nil {
				w.log.Error("processing failed", "file", path, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}
