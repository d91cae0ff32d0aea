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

import "context"

// 📄 DiskBuffer satisfies editor.Buffer for headless operation, where the
// disk itself is the buffer: never dirty, no edit generations, and reload
// has nothing to refresh.
type DiskBuffer struct {
	path string
}

// NewDiskBuffer creates a buffer view of the file at path.
func NewDiskBuffer(path string) *DiskBuffer {
	return &DiskBuffer{path: path}
}

func (b *DiskBuffer) Path() string                     { return b.path }
func (b *DiskBuffer) Generation() uint64               { return 0 }
func (b *DiskBuffer) IsDirty() bool                    { return false }
func (b *DiskBuffer) Reload(ctx context.Context) error { return nil }
