package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(ctx context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *recorder) sawPath(path string) bool {
	for _, p := range r.seen() {
		if p == path {
			return true
		}
	}
	return false
}

func testCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	return context.WithCancel(ctx)
}

// startWatcher runs w until the test ends.
func startWatcher(t *testing.T, ctx context.Context, w *Watcher) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() { <-done })
	// Give the watcher a moment to register its directories.
	time.Sleep(50 * time.Millisecond)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Handler: func(context.Context, string) {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root is required")

	_, err = New(Options{Roots: []string{t.TempDir()}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler is required")

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = New(Options{Roots: []string{file}, Handler: func(context.Context, string) {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestWatcher_WriteTriggersHandler(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w, err := New(Options{Roots: []string{root}, Handler: rec.handle})
	require.NoError(t, err)

	ctx, cancel := testCtx(t)
	defer cancel()
	startWatcher(t, ctx, w)

	target := filepath.Join(root, "a.ts")
	require.NoError(t, os.WriteFile(target, []byte("let x=1"), 0o644))

	assert.Eventually(t, func() bool { return rec.sawPath(target) },
		5*time.Second, 10*time.Millisecond)
}

func TestWatcher_IncludeFiltering(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w, err := New(Options{
		Roots:   []string{root},
		Handler: rec.handle,
		Include: []string{"**/*.ts"},
	})
	require.NoError(t, err)

	ctx, cancel := testCtx(t)
	defer cancel()
	startWatcher(t, ctx, w)

	wanted := filepath.Join(root, "a.ts")
	ignored := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(ignored, []byte("n"), 0o644))
	require.NoError(t, os.WriteFile(wanted, []byte("let x=1"), 0o644))

	require.Eventually(t, func() bool { return rec.sawPath(wanted) },
		5*time.Second, 10*time.Millisecond)
	assert.False(t, rec.sawPath(ignored))
}

func TestWatcher_ExcludedTreeIgnored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "dep"), 0o755))

	rec := &recorder{}
	w, err := New(Options{Roots: []string{root}, Handler: rec.handle})
	require.NoError(t, err)

	ctx, cancel := testCtx(t)
	defer cancel()
	startWatcher(t, ctx, w)

	buried := filepath.Join(root, "node_modules", "dep", "index.js")
	visible := filepath.Join(root, "app.js")
	require.NoError(t, os.WriteFile(buried, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(visible, []byte("y"), 0o644))

	require.Eventually(t, func() bool { return rec.sawPath(visible) },
		5*time.Second, 10*time.Millisecond)
	assert.False(t, rec.sawPath(buried))
}

func TestRetriggerGuard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("let x = 1;"), 0o644))

	g := newRetriggerGuard()
	assert.False(t, g.shouldSkip(path), "unmarked path is a real save")

	g.mark(path)
	assert.True(t, g.shouldSkip(path), "formatter's own rewrite is swallowed")
	assert.True(t, g.shouldSkip(path), "record survives until content changes")

	require.NoError(t, os.WriteFile(path, []byte("let x = 2;"), 0o644))
	assert.False(t, g.shouldSkip(path), "user edit clears the record")
	assert.False(t, g.shouldSkip(path), "cleared record stays cleared")
}

func TestDiskBuffer(t *testing.T) {
	b := NewDiskBuffer("/tree/a.ts")
	assert.Equal(t, "/tree/a.ts", b.Path())
	assert.Equal(t, uint64(0), b.Generation())
	assert.False(t, b.IsDirty())
	assert.NoError(t, b.Reload(context.Background()))
}
