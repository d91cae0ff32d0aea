// Copyright 2025 kettleby
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package watch turns filesystem write events into save events, letting
// the orchestrator run headless against a directory tree instead of
// inside an editor. Directories are registered recursively and events are
// filtered through doublestar include/exclude patterns.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultExcludes keeps the watcher out of trees that are never worth
// formatting and would explode the watch count.
var DefaultExcludes = []string{
	"**/.git",
	"**/.git/**",
	"**/node_modules",
	"**/node_modules/**",
}

// 🔧 Options configures a Watcher.
type Options struct {
	// Roots are the directory trees to watch. Required.
	Roots []string
	// Handler receives one save event per qualifying write. Required.
	// Called on the watcher goroutine; it must not block.
	Handler func(ctx context.Context, path string)
	// Include patterns (doublestar, matched against the slash-separated
	// path relative to the containing root). Empty means every file.
	Include []string
	// Exclude patterns. Empty means DefaultExcludes. To keep a whole
	// directory out of the watch, name it directly ("**/dist") in
	// addition to its contents ("**/dist/**").
	Exclude []string
}

// 👀 Watcher maps write events in a directory tree onto save events.
type Watcher struct {
	roots   []string
	handler func(ctx context.Context, path string)
	include []string
	exclude []string
	guard   *retriggerGuard
}

// 🏭 New creates a watcher.
func New(opts Options) (*Watcher, error) {
	if len(opts.Roots) == 0 {
		return nil, errors.Errorf("at least one root is required")
	}
	if opts.Handler == nil {
		return nil, errors.Errorf("handler is required")
	}
	exclude := opts.Exclude
	if len(exclude) == 0 {
		exclude = DefaultExcludes
	}

	roots := make([]string, 0, len(opts.Roots))
	for _, root := range opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.Errorf("resolving root %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, errors.Errorf("stat root %s: %w", abs, err)
		}
		if !info.IsDir() {
			return nil, errors.Errorf("root %s is not a directory", abs)
		}
		roots = append(roots, abs)
	}

	return &Watcher{
		roots:   roots,
		handler: opts.Handler,
		include: opts.Include,
		exclude: exclude,
		guard:   newRetriggerGuard(),
	}, nil
}

// MarkFormatted records the current on-disk content of path as produced
// by the formatter itself. The next write event carrying identical
// content is swallowed, so a formatter rewrite does not feed back into
// another run.
func (w *Watcher) MarkFormatted(path string) {
	w.guard.mark(path)
}

// Run watches until ctx is canceled. Watch errors are logged and
// survived; only setup failures and ctx cancellation end the loop.
func (w *Watcher) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	for _, root := range w.roots {
		if err := w.addTree(fsw, root); err != nil {
			return err
		}
		logger.Info().Str("root", root).Msg("watching for saves")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, event)

		case werr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(werr).Msg("filesystem watch error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	logger := zerolog.Ctx(ctx)

	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return // removed again already
	}

	// New directories join the watch so files created later are seen.
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !w.excluded(event.Name) {
			if err := fsw.Add(event.Name); err != nil {
				logger.Warn().Err(err).Str("dir", event.Name).Msg("could not watch new directory")
			}
		}
		return
	}

	if !w.qualifies(event.Name) {
		return
	}
	if w.guard.shouldSkip(event.Name) {
		logger.Debug().Str("file", event.Name).Msg("write matches formatter output, not re-triggering")
		return
	}

	logger.Debug().Str("file", event.Name).Msg("save event")
	w.handler(ctx, event.Name)
}

// addTree registers root and every non-excluded subdirectory.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep going
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.excluded(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return errors.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// qualifies applies include then exclude patterns to a file path.
func (w *Watcher) qualifies(path string) bool {
	rel, ok := w.relative(path)
	if !ok {
		return false
	}
	if w.excludedRel(rel) {
		return false
	}
	if len(w.include) == 0 {
		return true
	}
	for _, pattern := range w.include {
		if doublestar.MatchUnvalidated(pattern, rel) {
			return true
		}
	}
	return false
}

func (w *Watcher) excluded(path string) bool {
	rel, ok := w.relative(path)
	if !ok {
		return true
	}
	return w.excludedRel(rel)
}

func (w *Watcher) excludedRel(rel string) bool {
	for _, pattern := range w.exclude {
		if doublestar.MatchUnvalidated(pattern, rel) {
			return true
		}
	}
	return false
}

// relative resolves path against the root containing it, slash-separated
// for pattern matching.
func (w *Watcher) relative(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || len(rel) >= 2 && rel[:2] == ".." {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}
