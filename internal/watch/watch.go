package watch

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors and scrapers
// produce when rewriting a file.
const DefaultDebounce = 500 * time.Millisecond

// Watcher observes one posts file and invokes a reload callback after
// writes settle.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func()
	stop     chan struct{}
}

// New creates a watcher for path. onChange runs (debounced) whenever the
// file is written, created, or replaced. A zero debounce uses the default.
func New(path string, debounce time.Duration, onChange func()) (*Watcher, error) {
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the containing directory: most writers replace the file,
	// which drops a watch placed on the file itself.
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		watcher:  fw,
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		stop:     make(chan struct{}),
	}, nil
}

// Start runs the event loop until Close is called.
func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) loop() {
	var timer *time.Timer

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.onChange)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch error: %v", err)

		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.watcher.Close()
}
