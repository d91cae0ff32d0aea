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

package tool

import "gitlab.com/tozd/go/errors"

// Invocation outcome taxonomy. Callers classify with errors.Is; every
// failure path wraps exactly one of these sentinels.
var (
	// ErrToolNotFound: the executable is missing from the search path.
	// Distinct from a formatting failure — the file stays unformatted and
	// the condition is reported once.
	ErrToolNotFound = errors.New("formatter executable not found in PATH (install from https://dprint.dev/)")

	// ErrFormatFailed: the tool ran and exited non-zero, typically a
	// syntax error in the target file. Captured stderr carries the detail.
	ErrFormatFailed = errors.New("formatter reported an error")

	// ErrToolTimeout: the tool exceeded the per-invocation wall-clock
	// limit and was forcibly terminated.
	ErrToolTimeout = errors.New("formatter timed out")

	// ErrToolCrashed: the tool terminated abnormally for any other
	// reason (killed, failed to start after resolution, and so on).
	ErrToolCrashed = errors.New("formatter terminated abnormally")
)
