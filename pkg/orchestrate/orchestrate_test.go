package orchestrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/kettleby/savefmt/pkg/editor"
	"github.com/kettleby/savefmt/pkg/tool"
)

// fakeBuffer implements editor.Buffer over a plain struct.
type fakeBuffer struct {
	path       string
	generation uint64
	dirty      bool
	reloadErr  error
	reloads    atomic.Int32
}

func (b *fakeBuffer) Path() string       { return b.path }
func (b *fakeBuffer) Generation() uint64 { return atomic.LoadUint64(&b.generation) }
func (b *fakeBuffer) IsDirty() bool      { return b.dirty }
func (b *fakeBuffer) Reload(ctx context.Context) error {
	if b.reloadErr != nil {
		return b.reloadErr
	}
	b.reloads.Add(1)
	return nil
}

// fakeSink collects appended messages.
type fakeSink struct {
	mu   sync.Mutex
	msgs []string
}

func (s *fakeSink) Append(ctx context.Context, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *fakeSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

// invokerFunc adapts a function to the Invoker interface.
type invokerFunc func(ctx context.Context, filePath, configPath string) (*tool.Result, error)

func (f invokerFunc) Invoke(ctx context.Context, filePath, configPath string) (*tool.Result, error) {
	return f(ctx, filePath, configPath)
}

// project creates a temp tree with a dprint.json and one source file.
func project(t *testing.T, name, content string) (root, file string) {
	t.Helper()
	root = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "dprint.json"), []byte("{}\n"), 0o644))
	file = filepath.Join(root, name)
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	return root, file
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

// newTestOrchestrator wires an orchestrator whose completions are observed
// on a channel.
func newTestOrchestrator(t *testing.T, inv Invoker, sink editor.Sink) (*Orchestrator, chan Event) {
	t.Helper()
	done := make(chan Event, 8)
	o, err := New(Options{
		Invoker: inv,
		Sink:    sink,
		OnDone:  func(ev Event) { done <- ev },
	})
	require.NoError(t, err)
	return o, done
}

func waitEvent(t *testing.T, done chan Event) Event {
	t.Helper()
	select {
	case ev := <-done:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for save cycle to complete")
		return Event{}
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Sink: &fakeSink{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoker is required")

	_, err = New(Options{Invoker: invokerFunc(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink is required")
}

func TestHandleSave_NoConfigIsSilentNoOp(t *testing.T) {
	dir := t.TempDir() // no dprint.json anywhere under the temp root
	file := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(file, []byte("let x=1"), 0o644))

	var invocations atomic.Int32
	sink := &fakeSink{}
	o, err := New(Options{
		Invoker: invokerFunc(func(ctx context.Context, f, c string) (*tool.Result, error) {
			invocations.Add(1)
			return &tool.Result{}, nil
		}),
		Sink:    sink,
		Locator: boundedLocator(dir),
	})
	require.NoError(t, err)

	o.HandleSave(testCtx(t), &fakeBuffer{path: file})

	assert.Equal(t, int32(0), invocations.Load())
	assert.Empty(t, sink.messages())
	assert.False(t, o.Slots().Active(file))
}

func TestHandleSave_SuccessWithRewriteReloadsBuffer(t *testing.T) {
	_, file := project(t, "a.ts", "let x=1")

	inv := invokerFunc(func(ctx context.Context, f, c string) (*tool.Result, error) {
		// The tool rewrites the file in place on success.
		require.NoError(t, os.WriteFile(f, []byte("let x = 1;"), 0o644))
		return &tool.Result{}, nil
	})
	sink := &fakeSink{}
	o, done := newTestOrchestrator(t, inv, sink)

	buf := &fakeBuffer{path: file}
	o.HandleSave(testCtx(t), buf)
	ev := waitEvent(t, done)

	assert.Equal(t, ActionReload, ev.Action)
	assert.Equal(t, int32(1), buf.reloads.Load(), "buffer reloaded exactly once")
	assert.Empty(t, sink.messages(), "success is silent")
	assert.False(t, o.Slots().Active(file), "run slot free afterward")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "let x = 1;", string(data))
}

func TestHandleSave_SuccessNoChangesIsNoOp(t *testing.T) {
	_, file := project(t, "a.ts", "let x = 1;")

	inv := invokerFunc(func(ctx context.Context, f, c string) (*tool.Result, error) {
		return &tool.Result{Stdout: ""}, nil
	})
	sink := &fakeSink{}
	o, done := newTestOrchestrator(t, inv, sink)

	buf := &fakeBuffer{path: file}
	o.HandleSave(testCtx(t), buf)
	ev := waitEvent(t, done)

	assert.Equal(t, ActionNone, ev.Action)
	assert.Equal(t, int32(0), buf.reloads.Load())
	assert.Empty(t, sink.messages())
}

func TestHandleSave_FormatFailureGoesToSink(t *testing.T) {
	_, file := project(t, "b.ts", "let x=")

	inv := invokerFunc(func(ctx context.Context, f, c string) (*tool.Result, error) {
		res := &tool.Result{ExitCode: 1, Stderr: "SyntaxError: unexpected token"}
		return res, errors.Errorf("exit 1: %w", tool.ErrFormatFailed)
	})
	sink := &fakeSink{}
	o, done := newTestOrchestrator(t, inv, sink)

	buf := &fakeBuffer{path: file}
	o.HandleSave(testCtx(t), buf)
	ev := waitEvent(t, done)

	assert.Equal(t, ActionLogError, ev.Action)
	assert.Equal(t, int32(0), buf.reloads.Load(), "buffer untouched on failure")

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "SyntaxError: unexpected token")
	assert.NotContains(t, msgs[0], "\x1b", "no escape bytes may reach the sink")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "let x=", string(data), "on-disk file unchanged")

	// The slot is released: a subsequent save runs again.
	assert.False(t, o.Slots().Active(file))
}

func TestHandleSave_DoubleSaveRunsOnce(t *testing.T) {
	_, file := project(t, "a.ts", "let x=1")

	release := make(chan struct{})
	var invocations atomic.Int32
	inv := invokerFunc(func(ctx context.Context, f, c string) (*tool.Result, error) {
		invocations.Add(1)
		<-release
		return &tool.Result{}, nil
	})
	sink := &fakeSink{}
	o, done := newTestOrchestrator(t, inv, sink)

	ctx := testCtx(t)
	buf := &fakeBuffer{path: file}
	o.HandleSave(ctx, buf)

	// Second save while the first is still formatting: dropped, not queued.
	o.HandleSave(ctx, buf)

	close(release)
	waitEvent(t, done)

	assert.Equal(t, int32(1), invocations.Load())
	assert.False(t, o.Slots().Active(file))

	// After completion the slot is free again.
	o.HandleSave(ctx, buf)
	waitEvent(t, done)
	assert.Equal(t, int32(2), invocations.Load())
}

func TestHandleSave_StaleResultDiscarded(t *testing.T) {
	tests := []struct {
		name  string
		mutid func(b *fakeBuffer)
	}{
		{
			name:  "buffer_dirty_after_save",
			mutid: func(b *fakeBuffer) { b.dirty = true },
		},
		{
			name:  "generation_advanced_during_run",
			mutid: func(b *fakeBuffer) { atomic.AddUint64(&b.generation, 1) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, file := project(t, "a.ts", "let x=1")
			buf := &fakeBuffer{path: file}

			inv := invokerFunc(func(ctx context.Context, f, c string) (*tool.Result, error) {
				require.NoError(t, os.WriteFile(f, []byte("let x = 1;"), 0o644))
				// The user edits while the formatter runs.
				tt.mutid(buf)
				return &tool.Result{}, nil
			})
			sink := &fakeSink{}
			o, done := newTestOrchestrator(t, inv, sink)

			o.HandleSave(testCtx(t), buf)
			ev := waitEvent(t, done)

			assert.Equal(t, ActionNone, ev.Action, "stale result must not clobber newer edits")
			assert.Equal(t, int32(0), buf.reloads.Load())
			assert.Empty(t, sink.messages())
		})
	}
}

func TestHandleSave_ToolNotFoundReportedOnce(t *testing.T) {
	_, file := project(t, "a.ts", "let x=1")

	inv := invokerFunc(func(ctx context.Context, f, c string) (*tool.Result, error) {
		return nil, errors.Errorf("resolving: %w", tool.ErrToolNotFound)
	})
	sink := &fakeSink{}
	o, done := newTestOrchestrator(t, inv, sink)

	ctx := testCtx(t)
	buf := &fakeBuffer{path: file}
	for i := 0; i < 3; i++ {
		o.HandleSave(ctx, buf)
		waitEvent(t, done)
	}

	msgs := sink.messages()
	require.Len(t, msgs, 1, "tool-missing is reported once per session")
	assert.Contains(t, msgs[0], "not found in PATH")
}

func TestHandleSave_NoMatchingFilesIsSilent(t *testing.T) {
	_, file := project(t, "notes.xyz", "whatever")

	inv := invokerFunc(func(ctx context.Context, f, c string) (*tool.Result, error) {
		res := &tool.Result{ExitCode: 1, Stderr: "Error: No files found to format"}
		return res, errors.Errorf("exit 1: %w", tool.ErrFormatFailed)
	})
	sink := &fakeSink{}
	o, done := newTestOrchestrator(t, inv, sink)

	o.HandleSave(testCtx(t), &fakeBuffer{path: file})
	ev := waitEvent(t, done)

	assert.Equal(t, ActionNone, ev.Action)
	assert.Empty(t, sink.messages())
}

func TestHandleSave_CrashReleasesSlot(t *testing.T) {
	_, file := project(t, "a.ts", "let x=1")

	inv := invokerFunc(func(ctx context.Context, f, c string) (*tool.Result, error) {
		// The "no files" suppression applies only to the tool's own
		// non-zero verdict; a crash mentioning the phrase still reports.
		res := &tool.Result{ExitCode: -1, Stderr: "no files processed before signal"}
		return res, errors.Errorf("killed: %w", tool.ErrToolCrashed)
	})
	sink := &fakeSink{}
	o, done := newTestOrchestrator(t, inv, sink)

	o.HandleSave(testCtx(t), &fakeBuffer{path: file})
	ev := waitEvent(t, done)

	assert.Equal(t, ActionLogError, ev.Action)
	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "no files processed before signal")
	assert.False(t, o.Slots().Active(file), "slot must not leak on crash")
}

func TestHandleSave_ReloadFailureGoesToSink(t *testing.T) {
	_, file := project(t, "a.ts", "let x=1")

	inv := invokerFunc(func(ctx context.Context, f, c string) (*tool.Result, error) {
		require.NoError(t, os.WriteFile(f, []byte("let x = 1;"), 0o644))
		return &tool.Result{}, nil
	})
	sink := &fakeSink{}
	o, done := newTestOrchestrator(t, inv, sink)

	buf := &fakeBuffer{path: file, reloadErr: errors.New("view torn down")}
	o.HandleSave(testCtx(t), buf)
	ev := waitEvent(t, done)

	assert.Equal(t, ActionLogError, ev.Action)
	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "view torn down")
}

func TestHandleSave_IndependentFilesRunConcurrently(t *testing.T) {
	root, fileA := project(t, "a.ts", "let a=1")
	fileB := filepath.Join(root, "b.ts")
	require.NoError(t, os.WriteFile(fileB, []byte("let b=2"), 0o644))

	var inFlight, peak atomic.Int32
	gate := make(chan struct{})
	inv := invokerFunc(func(ctx context.Context, f, c string) (*tool.Result, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-gate
		inFlight.Add(-1)
		return &tool.Result{}, nil
	})
	sink := &fakeSink{}
	o, done := newTestOrchestrator(t, inv, sink)

	ctx := testCtx(t)
	o.HandleSave(ctx, &fakeBuffer{path: fileA})
	o.HandleSave(ctx, &fakeBuffer{path: fileB})

	// Both runs must be admitted before either completes.
	require.Eventually(t, func() bool { return inFlight.Load() == 2 }, 5*time.Second, time.Millisecond)
	close(gate)
	waitEvent(t, done)
	waitEvent(t, done)

	assert.Equal(t, int32(2), peak.Load())
}

// boundedLocator confines discovery to root so configs outside the temp
// tree cannot leak into a test.
func boundedLocator(root string) Locator {
	return locatorFunc(func(startDir string) (string, bool) {
		if !strings.HasPrefix(startDir, root) {
			return "", false
		}
		for dir := startDir; strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, "dprint.json")
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true
			}
		}
		return "", false
	})
}

type locatorFunc func(startDir string) (string, bool)

func (f locatorFunc) Locate(startDir string) (string, bool) { return f(startDir) }
