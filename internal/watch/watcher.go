// Package watch reports changes made to saved template directories by
// other programs.
package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher watches template directories. A template directory and its node
// folders are watched together; changes anywhere in them are reported as
// a change of the template directory, once per debounce interval.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	roots    map[string][]string // template dir -> watched paths
	owner    map[string]string   // watched path -> template dir
	quietTil map[string]time.Time

	notify chan string
	done   chan struct{}
	closed sync.Once
}

// New creates a watcher and starts its event loop.
func New(debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		watcher:  fw,
		debounce: debounce,
		logger:   logger.With("component", "watcher"),
		roots:    make(map[string][]string),
		owner:    make(map[string]string),
		quietTil: make(map[string]time.Time),
		notify:   make(chan string, 16),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch starts watching a template directory and its current node folders.
// Watching a directory again picks up node folders added since.
func (w *Watcher) Watch(root string) error {
	root = filepath.Clean(root)
	paths := []string{root}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			paths = append(paths, filepath.Join(root, e.Name()))
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.unwatchLocked(root)
	var added []string
	for _, p := range paths {
		if err := w.watcher.Add(p); err != nil {
			w.logger.Warn("cannot watch path", "path", p, "error", err)
			continue
		}
		added = append(added, p)
		w.owner[p] = root
	}
	w.roots[root] = added
	w.logger.Debug("watching template directory", "dir", root, "paths", len(added))
	return nil
}

// Unwatch stops watching a template directory.
func (w *Watcher) Unwatch(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unwatchLocked(filepath.Clean(root))
}

func (w *Watcher) unwatchLocked(root string) {
	for _, p := range w.roots[root] {
		// The path may already be gone.
		w.watcher.Remove(p)
		delete(w.owner, p)
	}
	delete(w.roots, root)
	delete(w.quietTil, root)
}

// Watching returns the watched template directories.
func (w *Watcher) Watching() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.roots))
	for root := range w.roots {
		out = append(out, root)
	}
	return out
}

// Quiet ignores changes to root for d. A process that is about to write
// a template directory itself uses it to avoid reporting its own writes.
func (w *Watcher) Quiet(root string, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quietTil[filepath.Clean(root)] = time.Now().Add(d)
}

// Changes returns the channel receiving changed template directories.
func (w *Watcher) Changes() <-chan string {
	return w.notify
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closed.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	lastEvent := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) &&
				!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Write) {
				continue
			}
			if root, ok := w.rootOf(ev.Name); ok {
				lastEvent[root] = time.Now()
				w.logger.Debug("fsnotify event", "op", ev.Op.String(), "path", ev.Name, "dir", root)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", "error", err)

		case <-ticker.C:
			now := time.Now()
			for root, last := range lastEvent {
				if now.Sub(last) < w.debounce {
					continue
				}
				delete(lastEvent, root)
				select {
				case w.notify <- root:
				default:
					w.logger.Warn("change notification dropped", "dir", root)
				}
			}
		}
	}
}

// rootOf maps an event path to its template directory, honoring Quiet.
func (w *Watcher) rootOf(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	root, ok := w.owner[filepath.Dir(path)]
	if !ok {
		root, ok = w.owner[path]
	}
	if !ok {
		return "", false
	}
	if until, quiet := w.quietTil[root]; quiet {
		if time.Now().Before(until) {
			return "", false
		}
		delete(w.quietTil, root)
	}
	return root, true
}
