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

package editor

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"gitlab.com/tozd/go/errors"
)

// 📸 Snapshot records the on-disk state of a file immediately before a
// formatter run, plus the buffer edit generation at that moment. It exists
// only for the post-run comparison and is recreated each run.
type Snapshot struct {
	Path       string
	Size       int64
	ModTime    time.Time
	Checksum   string // hex SHA-256 of file content
	Generation uint64 // buffer edit generation at capture time
	TakenAt    time.Time
}

// TakeSnapshot reads the file from disk and captures its current state.
// The host has already written the save to disk by the time this runs.
func TakeSnapshot(path string, generation uint64) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, errors.Errorf("reading %s for snapshot: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Snapshot{}, errors.Errorf("stat %s for snapshot: %w", path, err)
	}

	sum := sha256.Sum256(data)
	return Snapshot{
		Path:       path,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		Checksum:   hex.EncodeToString(sum[:]),
		Generation: generation,
		TakenAt:    time.Now(),
	}, nil
}

// ChangedOnDisk re-reads the file and reports whether its content differs
// from the snapshot. Disk is externally mutable between snapshot and
// reconciliation, so this always consults the current file rather than any
// cached copy.
func (s Snapshot) ChangedOnDisk() (bool, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return false, errors.Errorf("re-reading %s: %w", s.Path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) != s.Checksum, nil
}
