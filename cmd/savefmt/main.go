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

// Command savefmt is a headless host for the save-format orchestrator:
// it watches directory trees and formats files as they are written,
// standing in for the editor integration the core library is built
// against.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Shared flags
	configFile string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "savefmt",
		Short: "Format files with dprint as they are saved",
		Long: `savefmt watches directory trees and runs dprint against files as they
are written, reconciling only files governed by a dprint.json or
dprint.jsonc in an ancestor directory. Formatting is best-effort: a
failed run never disturbs the saved file, and failures surface only in
the log output.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigFile, "savefmt config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	rootCmd.AddCommand(
		newWatchCmd(),
		newVersionCmd(),
	)

	ctx := newLoggerContext()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// newLoggerContext builds the root context carrying the console logger.
// The level is finalized per command once flags are parsed.
func newLoggerContext() context.Context {
	logger := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

// commandContext applies the debug flag to the context logger.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.Ctx(ctx).Level(level)
	return logger.WithContext(ctx)
}
