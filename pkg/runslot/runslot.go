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

// Package runslot serializes formatter runs per file. Each file path owns
// one slot; while the slot is held, further save events for that path are
// dropped rather than queued, so a rapid double-save on a slow formatter
// produces exactly one run.
package runslot

import "sync"

// 🎰 slot is the per-file run state. Slots are created on first acquire and
// reused for the life of the process.
type slot struct {
	active     bool
	generation uint64 // number of acquisitions, for observability
}

// 🎯 Tracker maps file paths to run slots. The zero value is not usable;
// construct with New. A Tracker is owned by the orchestrator and is the
// only state that outlives a single save cycle.
type Tracker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// 🏭 New creates an empty tracker.
func New() *Tracker {
	return &Tracker{slots: make(map[string]*slot)}
}

// TryAcquire claims the run slot for path. It never blocks: the second
// return is false when a run is already active, in which case the caller
// must drop the event entirely.
func (t *Tracker) TryAcquire(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[path]
	if !ok {
		s = &slot{}
		t.slots[path] = s
	}
	if s.active {
		return false
	}
	s.active = true
	s.generation++
	return true
}

// Release clears the active flag for path. It must run on every exit path
// of the owning invocation — success, failure, or crash — or the file is
// locked out of formatting for the rest of the session. Releasing an
// unknown or inactive path is a no-op.
func (t *Tracker) Release(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.slots[path]; ok {
		s.active = false
	}
}

// Active reports whether a run is currently in flight for path.
func (t *Tracker) Active(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[path]
	return ok && s.active
}

// Generation returns how many times the slot for path has been acquired.
func (t *Tracker) Generation(path string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.slots[path]; ok {
		return s.generation
	}
	return 0
}
