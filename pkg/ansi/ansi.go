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

// Package ansi removes terminal escape sequences from captured process output.
package ansi

import "regexp"

// csiPattern matches ANSI CSI sequences: ESC '[' followed by parameter
// bytes (0x30-0x3F), intermediate bytes (0x20-0x2F) and one final byte
// (0x40-0x7E). Color codes are the common case.
var csiPattern = regexp.MustCompile(`\x1B\[[0-?]*[ -/]*[@-~]`)

// Strip removes all ANSI escape sequences from s, leaving human-readable
// content untouched. Idempotent: Strip(Strip(s)) == Strip(s). A literal '['
// without a preceding ESC byte is not an escape sequence and passes through.
//
// Removal repeats until a fixpoint: deleting one sequence can splice a new
// one together from the fragments of an interrupted escape, and a single
// pass over such input would return text that still strips further.
func Strip(s string) string {
	for {
		stripped := csiPattern.ReplaceAllString(s, "")
		if stripped == s {
			return stripped
		}
		s = stripped
	}
}
