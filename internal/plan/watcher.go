package plan

import (
	"path/filepath"

	"github.com/appforge/appforge/internal/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the plan file when the operator edits it on disk.
// A successful reload bumps the store version, which is how in-flight
// batches learn their plan went stale.
type Watcher struct {
	fsw    *fsnotify.Watcher
	store  *Store
	path   string
	logger *log.Logger
	done   chan struct{}
}

// WatchFile starts watching the plan file. The watch is on the parent
// directory because editors typically replace the file via rename.
func WatchFile(path string, store *Store, logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:    fsw,
		store:  store,
		path:   abs,
		logger: logger.With("component", "plan_watcher"),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("plan watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	p, err := LoadFile(w.path)
	if err != nil {
		// Likely a half-written save; the next write event retries.
		w.logger.Warn("ignoring unreadable plan edit", "path", w.path, "error", err)
		return
	}

	version, err := w.store.Replace(p)
	if err != nil {
		w.logger.Warn("rejected plan edit", "path", w.path, "error", err)
		return
	}
	w.logger.Info("plan reloaded from disk", "version", version)
}

// Close stops the watcher
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
