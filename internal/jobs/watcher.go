package jobs

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the cache when a file-backed dataset changes on disk.
// It watches the parent directory so that atomic replaces (write to a temp
// file, then rename) are seen as well as in-place writes.
type Watcher struct {
	cache    CacheWarmer
	path     string
	ref      string
	debounce time.Duration

	fsWatcher *fsnotify.Watcher
	mu        sync.Mutex
	timer     *time.Timer
	fired     chan struct{}
}

// NewWatcher creates a watcher for the file at path. ref is passed to the
// cache on reload.
func NewWatcher(c CacheWarmer, path, ref string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

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

	return &Watcher{
		cache:     c,
		path:      abs,
		ref:       ref,
		debounce:  debounce,
		fsWatcher: fsw,
		fired:     make(chan struct{}, 1),
	}, nil
}

// Start processes file events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	log.Printf("Source watcher started (%s)", w.path)
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		w.fsWatcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Println("Source watcher stopped")
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("Source watcher: %v", err)
		case <-w.fired:
			if _, err := w.cache.Warm(ctx, w.ref); err != nil {
				log.Printf("Source watcher: reload failed: %v", err)
			}
		}
	}
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.fired <- struct{}{}:
		default:
		}
	})
}
