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

// Package editor defines the integration points a host editor provides to
// the orchestrator: a buffer API, an append-only log sink, and a
// main-thread dispatcher. The orchestrator consumes these interfaces and
// never implements editor behavior itself.
package editor

import "context"

// 📄 Buffer is the host's view of one open file. The actual write-to-disk
// on save is performed by the host before the orchestrator ever runs.
type Buffer interface {
	// Path returns the absolute path of the file backing this buffer.
	Path() string

	// Generation returns a counter that advances on every user edit.
	// The orchestrator captures it before a run and discards results
	// whose generation no longer matches.
	Generation() uint64

	// IsDirty reports whether the buffer holds unsaved user edits.
	IsDirty() bool

	// Reload refreshes the buffer content from disk in place, preserving
	// cursor, selection and scroll position as far as the host allows.
	// Reload must not re-trigger the host's save event.
	Reload(ctx context.Context) error
}

// 📝 Sink is the host's append-only output surface, namespaced so messages
// from this subsystem do not mix with other extensions' output. Appends
// must never raise a modal interruption.
type Sink interface {
	Append(ctx context.Context, msg string)
}

// 🧵 Dispatcher schedules a function onto the host's single event-loop
// thread. Buffer mutation is only safe from that thread, so reconciliation
// always runs through the dispatcher.
type Dispatcher interface {
	RunOnMain(fn func())
}

// InlineDispatcher runs functions immediately on the calling goroutine.
// Suitable for headless hosts and tests, where there is no UI thread to
// protect.
type InlineDispatcher struct{}

func (InlineDispatcher) RunOnMain(fn func()) { fn() }
