// Package watch watches the full-text index directory for out-of-band
// changes — a second process restoring a backup, or an operator swapping
// in a rebuilt index — and calls back so the caller can reload its reader.
package watch

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"

	"chatsearch/internal/logging"
)

// Watcher owns an fsnotify watch on a single directory.
type Watcher struct {
	fsw    *fsnotify.Watcher
	done   chan struct{}
	logger *slog.Logger
}

// New starts watching dir (not its subdirectories), calling onChange
// whenever a write or create is observed in it.
// onChange's error return is logged, not propagated — a failed reload
// should not crash the watcher goroutine.
func New(dir string, onChange func() error, logger *slog.Logger) (*Watcher, error) {
	logger = logging.Default(logger).With("component", "watch")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, done: make(chan struct{}), logger: logger}
	go w.run(onChange)
	return w, nil
}

func (w *Watcher) run(onChange func() error) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := onChange(); err != nil {
					w.logger.Warn("reload after directory change failed", "error", err)
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("directory watch error", "error", err)
		}
	}
}

// Close stops watching and releases the underlying OS handle.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
