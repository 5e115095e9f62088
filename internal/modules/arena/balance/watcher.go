package balance

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/imfiit/arena/internal/modules/arena/battle"
)

// Watcher serves the current rules and reloads them when the file changes.
// A failed reload keeps the previous rules.
type Watcher struct {
	path    string
	current atomic.Pointer[battle.Rules]
	logger  *slog.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	done     chan struct{}
	onReload func(battle.Rules, error)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the watcher logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l.With("service", "balance") }
}

// OnReload registers a callback invoked after every reload attempt.
func OnReload(fn func(battle.Rules, error)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher loads path once. The initial load must succeed.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve balance path: %w", err)
	}
	w := &Watcher{
		path:   abs,
		logger: slog.Default().With("service", "balance"),
	}
	for _, opt := range opts {
		opt(w)
	}

	rules, err := Load(abs)
	if err != nil {
		return nil, err
	}
	w.current.Store(&rules)
	return w, nil
}

// Current returns the latest valid rules. It is safe to hand to
// battle.WithRules.
func (w *Watcher) Current() battle.Rules {
	return *w.current.Load()
}

// Reload re-reads the file now.
func (w *Watcher) Reload() error {
	rules, err := Load(w.path)
	if err == nil {
		w.current.Store(&rules)
		w.logger.Info("Balance rules reloaded", "path", w.path, "actions", len(rules.Actions))
	} else {
		w.logger.Error("Failed to reload balance rules, keeping previous", "path", w.path, "error", err)
	}
	if w.onReload != nil {
		w.onReload(rules, err)
	}
	return err
}

// Start watches the file's directory until ctx is done or Close is called.
// Editors often replace files instead of writing them, so create and
// rename events on the path count as changes too.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fsw = fsw
	w.done = make(chan struct{})

	go w.loop(ctx, fsw, w.done)
	w.logger.Info("Watching balance rules", "path", w.path)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				_ = w.Reload()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Balance watcher error", "error", err)
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	fsw, done := w.fsw, w.done
	w.fsw = nil
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	err := fsw.Close()
	<-done
	return err
}
