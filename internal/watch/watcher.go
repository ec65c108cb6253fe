// Package watch observes a repository root for file changes so the server
// can flag stale snapshots without rescanning on every keystroke.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher monitors a repo root recursively and reports settled change
// batches via the OnChange callback. Events inside ignored directories are
// dropped, and rapid saves to the same file are debounced.
type Watcher struct {
	Root       string
	IgnoreDirs map[string]bool

	// OnChange receives the batch of changed paths once they have settled
	// past the debounce window. Called from the watcher goroutine.
	OnChange func(paths []string)

	Logger *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	pending  map[string]time.Time
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// New creates a Watcher for root. Start must be called before events flow.
func New(root string, ignoreDirs map[string]bool, onChange func([]string), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		Root:       root,
		IgnoreDirs: ignoreDirs,
		OnChange:   onChange,
		Logger:     logger,
		pending:    make(map[string]time.Time),
		debounce:   500 * time.Millisecond,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start registers watches for the root and all non-ignored subdirectories
// and begins the event loop. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	added := 0
	err = filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep going
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.Root && w.IgnoreDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err == nil {
			added++
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return err
	}
	w.Logger.Info("watching repo", zap.String("root", w.Root), zap.Int("dirs", added))

	go w.run(ctx)
	return nil
}

// Stop shuts the watcher down and waits for the event loop to exit.
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
	_ = w.fsw.Close()
}

// IsRunning reports whether the event loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	flush := time.NewTicker(100 * time.Millisecond)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.Logger.Warn("watch error", zap.Error(err))

		case <-flush.C:
			w.flushSettled()
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return // chmod noise
	}
	base := filepath.Base(ev.Name)
	if w.IgnoreDirs[base] {
		return
	}

	// A new directory needs its own watch for events beneath it.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.IgnoreDirs[base] {
				_ = w.fsw.Add(ev.Name)
			}
			return
		}
	}

	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flushSettled() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	if len(settled) > 0 && w.OnChange != nil {
		w.OnChange(settled)
	}
}
