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

// Package orchestrate drives the save-to-format cycle: eligibility check,
// per-file run slot, asynchronous formatter invocation, and buffer
// reconciliation. Formatting is best-effort post-processing — by the time
// the orchestrator runs, the host has already written the save to disk,
// and no failure here may disturb that.
package orchestrate

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/kettleby/savefmt/pkg/discover"
	"github.com/kettleby/savefmt/pkg/editor"
	"github.com/kettleby/savefmt/pkg/runslot"
	"github.com/kettleby/savefmt/pkg/tool"
)

// 🔨 Invoker runs the external formatter. Satisfied by tool.Invoker;
// narrowed to an interface here so tests can substitute a fake.
type Invoker interface {
	Invoke(ctx context.Context, filePath, configPath string) (*tool.Result, error)
}

// 🔍 Locator decides eligibility. Satisfied by discover.Locator.
type Locator interface {
	Locate(startDir string) (string, bool)
}

// 🎬 Event describes one completed save cycle, delivered through the
// OnDone hook after the run slot is released.
type Event struct {
	Path   string
	Action Action
	Result *tool.Result
}

// 🔧 Options configures the orchestrator.
type Options struct {
	// Invoker runs the formatter. Required.
	Invoker Invoker
	// Sink receives failure output. Required.
	Sink editor.Sink
	// Slots serializes runs per file. Defaults to a fresh tracker.
	Slots *runslot.Tracker
	// Locator decides eligibility. Defaults to discover.Locator{}.
	Locator Locator
	// Dispatcher schedules reconciliation onto the host's event-loop
	// thread. Defaults to editor.InlineDispatcher{}.
	Dispatcher editor.Dispatcher
	// OnDone, when set, observes completed cycles. Called after the run
	// slot is released, on the dispatcher thread.
	OnDone func(Event)
}

// 🎯 Orchestrator is the save-event entry point. One instance serves the
// whole host session; per-file state lives in the slot tracker, so saves
// on different files proceed independently.
type Orchestrator struct {
	invoker    Invoker
	sink       editor.Sink
	slots      *runslot.Tracker
	locator    Locator
	dispatcher editor.Dispatcher
	onDone     func(Event)

	notFoundOnce sync.Once // tool-missing is reported to the sink once per session
}

// 🏭 New creates an orchestrator with the given options.
func New(opts Options) (*Orchestrator, error) {
	if opts.Invoker == nil {
		return nil, errors.Errorf("invoker is required")
	}
	if opts.Sink == nil {
		return nil, errors.Errorf("sink is required")
	}
	o := &Orchestrator{
		invoker:    opts.Invoker,
		sink:       opts.Sink,
		slots:      opts.Slots,
		locator:    opts.Locator,
		dispatcher: opts.Dispatcher,
		onDone:     opts.OnDone,
	}
	if o.slots == nil {
		o.slots = runslot.New()
	}
	if o.locator == nil {
		o.locator = discover.Locator{}
	}
	if o.dispatcher == nil {
		o.dispatcher = editor.InlineDispatcher{}
	}
	return o, nil
}

// Slots exposes the run-slot tracker, mainly so hosts can inspect
// in-flight state.
func (o *Orchestrator) Slots() *runslot.Tracker {
	return o.slots
}

// HandleSave is called by the host after it has written buf to disk. It
// returns quickly: when the file is eligible and its slot is free, the
// formatter runs on a worker goroutine and reconciliation is dispatched
// back to the host thread on completion. Ineligible files and files with
// a run already in flight are silent no-ops.
func (o *Orchestrator) HandleSave(ctx context.Context, buf editor.Buffer) {
	logger := zerolog.Ctx(ctx)
	path := buf.Path()

	configPath, ok := o.locator.Locate(filepath.Dir(path))
	if !ok {
		logger.Debug().Str("file", path).Msg("no formatter config in ancestry, skipping")
		return
	}

	if !o.slots.TryAcquire(path) {
		logger.Debug().Str("file", path).Msg("format run already in flight, dropping save")
		return
	}

	snap, err := editor.TakeSnapshot(path, buf.Generation())
	if err != nil {
		// The file may have been removed between the host's save and now.
		// Not a formatting failure, so the sink stays quiet.
		o.slots.Release(path)
		logger.Warn().Err(err).Str("file", path).Msg("could not snapshot saved file")
		return
	}

	logger.Debug().
		Str("file", path).
		Str("config", configPath).
		Uint64("generation", snap.Generation).
		Msg("dispatching format run")

	go o.run(ctx, buf, configPath, snap)
}

// run executes off the host thread, then hands reconciliation back through
// the dispatcher. The slot is released on every exit path.
func (o *Orchestrator) run(ctx context.Context, buf editor.Buffer, configPath string, snap editor.Snapshot) {
	res, invokeErr := o.invoker.Invoke(ctx, snap.Path, configPath)

	o.dispatcher.RunOnMain(func() {
		action := ActionNone
		defer func() {
			o.slots.Release(snap.Path)
			if o.onDone != nil {
				o.onDone(Event{Path: snap.Path, Action: action, Result: res})
			}
		}()
		action = o.reconcile(ctx, buf, snap, res, invokeErr)
	})
}
