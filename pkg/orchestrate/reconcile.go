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

package orchestrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/kettleby/savefmt/pkg/editor"
	"github.com/kettleby/savefmt/pkg/tool"
)

// ⚖️ Action is the reconciliation verdict for one completed run.
type Action int

const (
	// ActionNone: nothing to do — the formatter made no edits, the result
	// went stale, or the tool simply had no plugin for the file.
	ActionNone Action = iota
	// ActionReload: the formatter rewrote the file and the buffer was
	// refreshed from disk.
	ActionReload
	// ActionLogError: the run failed and sanitized output went to the sink.
	ActionLogError
)

func (a Action) String() string {
	switch a {
	case ActionReload:
		return "reload"
	case ActionLogError:
		return "log-error"
	default:
		return "none"
	}
}

// reconcile decides what a finished run means for the buffer. Runs on the
// dispatcher thread, the only place buffer mutation is safe.
func (o *Orchestrator) reconcile(ctx context.Context, buf editor.Buffer, snap editor.Snapshot, res *tool.Result, invokeErr error) Action {
	logger := zerolog.Ctx(ctx)

	if invokeErr != nil {
		return o.reportFailure(ctx, snap.Path, res, invokeErr)
	}

	// Stale guard: the user kept typing while the formatter ran. Their
	// newer edits win; the result is discarded rather than clobbered over.
	if buf.IsDirty() || buf.Generation() != snap.Generation {
		logger.Debug().Str("file", snap.Path).Msg("buffer edited during run, discarding result")
		return ActionNone
	}

	changed, err := snap.ChangedOnDisk()
	if err != nil {
		logger.Warn().Err(err).Str("file", snap.Path).Msg("could not compare disk content")
		return ActionNone
	}
	if !changed {
		logger.Debug().Str("file", snap.Path).Msg("formatter made no edits")
		return ActionNone
	}

	if err := buf.Reload(ctx); err != nil {
		o.sink.Append(ctx, fmt.Sprintf("reloading %s after format: %v", snap.Path, err))
		return ActionLogError
	}
	logger.Debug().Str("file", snap.Path).Msg("buffer reloaded from formatted file")
	return ActionReload
}

// reportFailure maps an invocation error onto the sink. Success is silent;
// failure surfaces only here, never as a modal interruption.
func (o *Orchestrator) reportFailure(ctx context.Context, path string, res *tool.Result, invokeErr error) Action {
	switch {
	case errors.Is(invokeErr, tool.ErrToolNotFound):
		// Worth one line per session, not one per save.
		reported := false
		o.notFoundOnce.Do(func() {
			o.sink.Append(ctx, tool.ErrToolNotFound.Error())
			reported = true
		})
		if !reported {
			return ActionNone
		}
		return ActionLogError

	case errors.Is(invokeErr, tool.ErrFormatFailed):
		if res != nil && isNoMatchingFiles(res.CombinedOutput()) {
			// The tool has no plugin configured for this file type.
			// The original save is fine; stay quiet.
			return ActionNone
		}
		o.sink.Append(ctx, formatFailureMessage(path, res))
		return ActionLogError

	case errors.Is(invokeErr, tool.ErrToolTimeout), errors.Is(invokeErr, tool.ErrToolCrashed):
		msg := fmt.Sprintf("formatter run on %s did not complete: %v", path, invokeErr)
		if res != nil && res.CombinedOutput() != "" {
			msg += "\n" + res.CombinedOutput()
		}
		o.sink.Append(ctx, msg)
		return ActionLogError

	default:
		o.sink.Append(ctx, fmt.Sprintf("formatting %s: %v", path, invokeErr))
		return ActionLogError
	}
}

// isNoMatchingFiles detects the tool's "nothing to format here" refusal,
// which it reports with a non-zero exit.
func isNoMatchingFiles(output string) bool {
	low := strings.ToLower(output)
	return strings.Contains(low, "no files") || strings.Contains(low, "no matching files")
}

func formatFailureMessage(path string, res *tool.Result) string {
	if res == nil {
		return fmt.Sprintf("formatting %s failed", path)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "formatting %s failed (exit %d):", path, res.ExitCode)
	if res.Stdout != "" {
		b.WriteString("\n\nSTDOUT:\n" + res.Stdout)
	}
	if res.Stderr != "" {
		b.WriteString("\n\nSTDERR:\n" + res.Stderr)
	}
	return b.String()
}
