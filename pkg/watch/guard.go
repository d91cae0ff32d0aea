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

package watch

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"
)

// retriggerGuard remembers the content hash a formatter run left behind
// for each path. A write event whose content still carries that hash is
// the formatter's own rewrite (or an idempotent re-save) and must not
// start another run.
type retriggerGuard struct {
	mu     sync.Mutex
	hashes map[string]string
}

func newRetriggerGuard() *retriggerGuard {
	return &retriggerGuard{hashes: make(map[string]string)}
}

func hashFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), true
}

// mark records the current on-disk content of path as formatter output.
func (g *retriggerGuard) mark(path string) {
	sum, ok := hashFile(path)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hashes[path] = sum
}

// shouldSkip reports whether the current content of path matches the
// recorded formatter output. A mismatch clears the record: the user has
// edited the file and future events are real saves again.
func (g *retriggerGuard) shouldSkip(path string) bool {
	g.mu.Lock()
	recorded, ok := g.hashes[path]
	g.mu.Unlock()
	if !ok {
		return false
	}

	sum, readable := hashFile(path)
	if readable && sum == recorded {
		return true
	}

	g.mu.Lock()
	delete(g.hashes, path)
	g.mu.Unlock()
	return false
}
