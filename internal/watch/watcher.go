// Package watch rebuilds a tenant when its site sources change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"campaignsites/internal/logging"
)

// RebuildFunc is called with the settled set of changed paths.
type RebuildFunc func(ctx context.Context, changed []string) error

// Options configures a Watcher.
type Options struct {
	// Root is the directory relative Paths resolve against.
	Root string

	// Paths are the files or directory trees to watch.
	Paths []string

	// Ignore lists directory names or root-relative prefixes never watched,
	// such as the builds directory the rebuild itself writes to.
	Ignore []string

	// Debounce is how long changes must settle before a rebuild.
	Debounce time.Duration
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Rebuilds      int
	Failures      int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher batches filesystem events and triggers rebuilds.
type Watcher struct {
	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	opts      Options
	rebuild   RebuildFunc
	pending   map[string]struct{}
	lastEvent time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
	stats     Stats
}

// DefaultIgnore are directories never worth watching.
var DefaultIgnore = []string{".git", "node_modules", ".next", ".sitectl"}

// New creates a watcher.
func New(opts Options, rebuild RebuildFunc) (*Watcher, error) {
	if rebuild == nil {
		return nil, fmt.Errorf("rebuild func is required")
	}
	if len(opts.Paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	root, err := filepath.Abs(orDot(opts.Root))
	if err != nil {
		return nil, err
	}
	opts.Root = root
	opts.Ignore = append(append([]string{}, DefaultIgnore...), opts.Ignore...)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher: fw,
		opts:    opts,
		rebuild: rebuild,
		pending: make(map[string]struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start adds the watch paths and begins the event loop. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	added := 0
	for _, p := range w.opts.Paths {
		path := p
		if !filepath.IsAbs(path) {
			path = filepath.Join(w.opts.Root, p)
		}
		n, err := w.addTree(path)
		if err != nil {
			logging.WatchWarn("Cannot watch %s: %v", p, err)
			continue
		}
		added += n
	}
	if added == 0 {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
		_ = w.watcher.Close()
		return fmt.Errorf("none of the watch paths exist: %s", strings.Join(w.opts.Paths, ", "))
	}
	logging.Watch("Watching %d directories under %s", added, w.opts.Root)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.WatchWarn("Error closing watcher: %v", err)
	}
	logging.Watch("Watcher stopped")
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.opts.Debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchWarn("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if w.ignored(event.Name) {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if _, err := w.addTree(event.Name); err != nil {
				logging.WatchWarn("Cannot watch new directory %s: %v", event.Name, err)
			}
		}
	}
	logging.WatchDebug("%s %s", event.Op, event.Name)

	w.mu.Lock()
	w.pending[event.Name] = struct{}{}
	w.lastEvent = time.Now()
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = w.lastEvent
	w.mu.Unlock()
}

// flush triggers one rebuild once changes have settled.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 || time.Since(w.lastEvent) < w.opts.Debounce {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(changed)
	logging.Watch("%d change(s) settled, rebuilding", len(changed))
	err := w.rebuild(ctx, changed)

	w.mu.Lock()
	w.stats.Rebuilds++
	if err != nil {
		w.stats.Failures++
	}
	w.mu.Unlock()
	if err != nil {
		logging.WatchWarn("Rebuild failed: %v", err)
	}
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(root string) (int, error) {
	info, err := os.Stat(root)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 1, w.watcher.Add(root)
	}
	added := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		added++
		return nil
	})
	return added, err
}

func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)
	for _, ig := range w.opts.Ignore {
		ig = strings.TrimSuffix(filepath.ToSlash(ig), "/")
		if ig == "" {
			continue
		}
		if base == ig || rel == ig || strings.HasPrefix(rel, ig+"/") {
			return true
		}
	}
	return false
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}
