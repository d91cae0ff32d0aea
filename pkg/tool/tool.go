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

// Package tool invokes the external formatter as a child process and
// classifies its outcome. The formatter is opaque to this package: it
// reads a config file, rewrites the target file in place, and signals
// success through its exit code.
package tool

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/kettleby/savefmt/pkg/ansi"
)

// DefaultName is the formatter binary looked up on PATH.
const DefaultName = "dprint"

// DefaultTimeout bounds one invocation. A hung tool would otherwise hold
// the file's run slot for the rest of the session.
const DefaultTimeout = 30 * time.Second

// 🧾 Result is the outcome of one invocation. Stdout and Stderr are
// sanitized of ANSI escape sequences at capture time. A Result accompanies
// failures too, so captured output can reach the log sink.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Started  time.Time
	Finished time.Time
}

// CombinedOutput returns stdout and stderr joined for matching and display.
func (r *Result) CombinedOutput() string {
	if r.Stdout == "" {
		return r.Stderr
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + "\n" + r.Stderr
}

// 🔨 Invoker runs the formatter. The zero value uses DefaultName and
// DefaultTimeout.
type Invoker struct {
	// Name is the executable name or path. Looked up on PATH when not
	// already absolute.
	Name string
	// Timeout is the per-invocation wall-clock limit. Zero means
	// DefaultTimeout; negative disables the limit.
	Timeout time.Duration
}

func (i Invoker) name() string {
	if i.Name != "" {
		return i.Name
	}
	return DefaultName
}

func (i Invoker) timeout() time.Duration {
	if i.Timeout == 0 {
		return DefaultTimeout
	}
	return i.Timeout
}

// Resolve locates the formatter executable on the search path. The typed
// bool result is the single place "tool missing" is decided; callers never
// interpret raw exec errors themselves.
func (i Invoker) Resolve() (string, bool) {
	path, err := exec.LookPath(i.name())
	if err != nil {
		return "", false
	}
	return path, true
}

// Invoke formats filePath with the config at configPath, blocking until
// the child process exits or the timeout fires. The working directory is
// the file's own directory so the tool's config resolution sees the same
// tree the locator searched. On failure the returned error wraps one of
// the package sentinels and the Result still carries captured output.
func (i Invoker) Invoke(ctx context.Context, filePath, configPath string) (*Result, error) {
	bin, ok := i.Resolve()
	if !ok {
		return nil, errors.Errorf("resolving %q: %w", i.name(), ErrToolNotFound)
	}

	if d := i.timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, "fmt", filePath, "--config", configPath)
	cmd.Dir = filepath.Dir(filePath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	res := &Result{
		Stdout:   ansi.Strip(stdout.String()),
		Stderr:   ansi.Strip(stderr.String()),
		Started:  started,
		Finished: time.Now(),
	}

	zerolog.Ctx(ctx).Debug().
		Str("tool", bin).
		Str("file", filePath).
		Dur("took", res.Finished.Sub(res.Started)).
		Msg("formatter invocation finished")

	if runErr == nil {
		return res, nil
	}

	// Context checks must precede exit-code classification: a killed
	// child also surfaces as an ExitError.
	if ctx.Err() == context.DeadlineExceeded {
		res.ExitCode = -1
		return res, errors.Errorf("formatting %s after %s: %w", filePath, i.timeout(), ErrToolTimeout)
	}
	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, errors.Errorf("formatting %s: run canceled: %w", filePath, ErrToolCrashed)
	}

	// Only a real exit code is a formatting verdict. A child torn down by
	// a signal reports ExitCode() == -1 and never Exited().
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && exitErr.Exited() {
		res.ExitCode = exitErr.ExitCode()
		return res, errors.Errorf("formatting %s (exit %d): %w", filePath, res.ExitCode, ErrFormatFailed)
	}

	res.ExitCode = -1
	return res, errors.Errorf("running %s: %w", bin, ErrToolCrashed)
}

// Version probes the formatter with --version and returns the trimmed,
// sanitized output line. Used by the host's version command and logged at
// daemon startup.
func (i Invoker) Version(ctx context.Context) (string, error) {
	bin, ok := i.Resolve()
	if !ok {
		return "", errors.Errorf("resolving %q: %w", i.name(), ErrToolNotFound)
	}

	cmd := exec.CommandContext(ctx, bin, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", errors.Errorf("probing %s --version: %w", bin, ErrToolCrashed)
	}
	return strings.TrimSpace(ansi.Strip(out.String())), nil
}
