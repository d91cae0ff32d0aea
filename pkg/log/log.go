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

// Package log provides the console implementation of the editor.Sink
// contract: an append-only, namespaced output surface pairing a
// human-readable colorized line with a structured zerolog record.
package log

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// Namespace prefixes every console line so this subsystem's output does
// not mix with other extensions' messages.
const Namespace = "savefmt"

// 🎯 ConsoleSink writes formatter failures to a console writer. Appends
// never block on user interaction and never raise a dialog.
type ConsoleSink struct {
	console io.Writer
	mu      sync.Mutex
}

// 🏭 NewConsoleSink creates a sink writing to console.
func NewConsoleSink(console io.Writer) *ConsoleSink {
	return &ConsoleSink{console: console}
}

// Append writes one message to the console and mirrors it into the
// structured log carried by ctx. Multi-line messages (captured tool
// output) are indented under the namespaced header line.
func (s *ConsoleSink) Append(ctx context.Context, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header := color.New(color.Bold, color.FgCyan).Sprint(Namespace)
	lines := strings.Split(strings.TrimRight(msg, "\n"), "\n")

	fmt.Fprintf(s.console, "%s %s %s\n", header,
		color.New(color.FgRed).Sprint("✗"), lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(s.console, "    %s\n", line)
	}

	zerolog.Ctx(ctx).Warn().Str("component", Namespace).Msg(lines[0])
}
