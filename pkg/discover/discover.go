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

// Package discover finds the formatter configuration file governing a
// saved file. A file is only eligible for formatting when a config file
// exists somewhere between its directory and the filesystem root.
package discover

import (
	"os"
	"path/filepath"
)

// ConfigNames are the recognized configuration filenames, checked in
// order at each directory level. The .jsonc variant tolerates comments.
var ConfigNames = []string{"dprint.json", "dprint.jsonc"}

// 🔍 Locator walks ancestor directories looking for a recognized config file.
type Locator struct {
	// Names overrides ConfigNames when non-empty.
	Names []string
	// Boundary, when set, stops the upward walk after this directory is
	// searched. Useful to confine discovery to a workspace root.
	Boundary string
}

// Locate searches from startDir upward and returns the path of the first
// recognized config file. The second return is false when no config exists,
// which callers treat as "this file is not managed" rather than an error.
// Stat failures (including permission errors) are treated as not-found at
// that level and the walk continues upward.
func (l Locator) Locate(startDir string) (string, bool) {
	names := l.Names
	if len(names) == 0 {
		names = ConfigNames
	}

	dir := filepath.Clean(startDir)
	for {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate, true
			}
		}

		if l.Boundary != "" && dir == filepath.Clean(l.Boundary) {
			return "", false
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Locate searches with the default configuration filenames.
func Locate(startDir string) (string, bool) {
	return Locator{}.Locate(startDir)
}
