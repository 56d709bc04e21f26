package prompt

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lyra/internal/logging"
)

// Watcher hot-reloads a prompt override file into a Library whenever the file
// changes on disk. Editors save through renames, so the parent directory is
// watched rather than the file itself.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	library     *Library
	path        string
	lastReload  time.Time
	debounceDur time.Duration
	running     bool
	doneCh      chan struct{}
}

// NewWatcher creates a watcher for the given override file.
func NewWatcher(library *Library, path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fsw,
		library:     library,
		path:        path,
		debounceDur: 500 * time.Millisecond,
		doneCh:      make(chan struct{}),
	}, nil
}

// Start loads the file once and begins watching. Non-blocking; the watch loop
// exits when ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.library.LoadOverrides(w.path); err != nil {
		logging.Boot("prompt override file not loaded yet: %v", err)
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.mu.Lock()
			debounced := time.Since(w.lastReload) < w.debounceDur
			if !debounced {
				w.lastReload = time.Now()
			}
			w.mu.Unlock()
			if debounced {
				continue
			}

			if err := w.library.LoadOverrides(w.path); err != nil {
				logging.Boot("prompt reload failed, keeping previous templates: %v", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Boot("prompt watcher error: %v", err)
		}
	}
}

// Stop closes the underlying watcher and waits for the loop to exit. Safe to
// call before Start and more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	err := w.watcher.Close()
	if wasRunning {
		<-w.doneCh
	}
	return err
}
