package dataset

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher discovers new source documents in a directory and loads each one
// once it has been quiet for the debounce interval. Sources already
// requested are skipped by the loader's dedupe, so rewriting a loaded file
// does not reload it.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	loader      *Loader
	dir         string
	prefix      string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	logger      *zap.Logger
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithDebounce sets how long a file must stay unchanged before it loads.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDur = d
	}
}

// WithSourcePrefix prepends prefix to the source ids the watcher issues,
// for a fetcher rooted above the watched directory.
func WithSourcePrefix(prefix string) WatcherOption {
	return func(w *Watcher) {
		w.prefix = prefix
	}
}

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher loading *.json files from dir. Source ids
// are file names relative to dir, plus the optional prefix, so the loader's
// fetcher must resolve them against the matching directory.
func NewWatcher(dir string, loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:     fw,
		loader:      loader,
		dir:         dir,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start loads the documents already present and begins watching. It is
// non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		if cerr := w.watcher.Close(); cerr != nil {
			w.logger.Warn("closing watcher", zap.Error(cerr))
		}
		return err
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("initial scan failed", zap.String("dir", w.dir), zap.Error(err))
	}
	for _, e := range entries {
		if !e.IsDir() && isSource(e.Name()) {
			w.issue(ctx, e.Name())
		}
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
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
		w.logger.Error("closing watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(debounceTick(w.debounceDur))
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
			w.logger.Error("watch error", zap.Error(err))

		case <-ticker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !isSource(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	name, err := filepath.Rel(w.dir, event.Name)
	if err != nil {
		name = filepath.Base(event.Name)
	}

	w.mu.Lock()
	w.debounceMap[filepath.ToSlash(name)] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	now := time.Now()
	var ready []string

	w.mu.Lock()
	for name, last := range w.debounceMap {
		if now.Sub(last) >= w.debounceDur {
			ready = append(ready, name)
			delete(w.debounceMap, name)
		}
	}
	w.mu.Unlock()

	for _, name := range ready {
		w.issue(ctx, name)
	}
}

func (w *Watcher) issue(ctx context.Context, name string) {
	if w.prefix != "" {
		name = path.Join(w.prefix, name)
	}
	err := w.loader.LoadSource(ctx, name)
	switch {
	case err == nil:
		w.logger.Debug("discovered source", zap.String("source", name))
	case errors.Is(err, ErrDuplicateSource):
	default:
		w.logger.Warn("could not load source", zap.String("source", name), zap.Error(err))
	}
}

func isSource(name string) bool {
	return strings.HasSuffix(name, ".json")
}

func debounceTick(d time.Duration) time.Duration {
	tick := d / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	return tick
}
