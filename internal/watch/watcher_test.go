package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *changeRecorder) record(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
}

func (r *changeRecorder) seen(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.paths {
		if p == path {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

func TestWatcherReportsWrites(t *testing.T) {
	root := t.TempDir()
	rec := &changeRecorder{}

	w := New(root, map[string]bool{".git": true}, rec.record, nil)
	w.debounce = 50 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	target := filepath.Join(root, "app.py")
	require.NoError(t, os.WriteFile(target, []byte("print('hi')\n"), 0o644))

	assert.True(t, waitFor(t, func() bool { return rec.seen(target) }),
		"expected change report for %s", target)
}

func TestWatcherIgnoresConfiguredDirs(t *testing.T) {
	root := t.TempDir()
	ignored := filepath.Join(root, ".git")
	require.NoError(t, os.MkdirAll(ignored, 0o755))

	rec := &changeRecorder{}
	w := New(root, map[string]bool{".git": true}, rec.record, nil)
	w.debounce = 50 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	inside := filepath.Join(ignored, "index")
	require.NoError(t, os.WriteFile(inside, []byte("x"), 0o644))

	outside := filepath.Join(root, "seen.txt")
	require.NoError(t, os.WriteFile(outside, []byte("y"), 0o644))

	require.True(t, waitFor(t, func() bool { return rec.seen(outside) }))
	assert.False(t, rec.seen(inside))
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w := New(root, nil, nil, nil)
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	w.Stop()
	assert.False(t, w.IsRunning())
	w.Stop() // second call must not panic or block
}
