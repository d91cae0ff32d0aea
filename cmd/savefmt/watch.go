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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/kettleby/savefmt/pkg/log"
	"github.com/kettleby/savefmt/pkg/orchestrate"
	"github.com/kettleby/savefmt/pkg/tool"
	"github.com/kettleby/savefmt/pkg/watch"
)

// newWatchCmd creates the daemon command.
func newWatchCmd() *cobra.Command {
	var (
		toolName string
		include  []string
		exclude  []string
	)

	cmd := &cobra.Command{
		Use:   "watch [root...]",
		Short: "Watch directory trees and format files as they are saved",
		Long: `Watch registers the given roots (default: the current directory) and
treats every file write as a save event. Files without a dprint.json or
dprint.jsonc in an ancestor directory are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			logger := zerolog.Ctx(ctx)

			cfg, err := loadConfig(configFile)
			if err != nil {
				return errors.Errorf("loading config: %w", err)
			}

			// Flags override file values.
			if toolName != "" {
				cfg.Tool = toolName
			}
			if len(include) > 0 {
				cfg.Include = include
			}
			if len(exclude) > 0 {
				cfg.Exclude = exclude
			}

			roots := args
			if len(roots) == 0 {
				roots = []string{"."}
			}

			return runDaemon(ctx, cfg, roots, logger)
		},
	}

	cmd.Flags().StringVar(&toolName, "tool", "", "formatter executable (default \"dprint\")")
	cmd.Flags().StringSliceVar(&include, "include", nil, "only format files matching these patterns (e.g. '**/*.ts')")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "skip files and directories matching these patterns")

	return cmd
}

func runDaemon(ctx context.Context, cfg *Config, roots []string, logger *zerolog.Logger) error {
	invoker := tool.Invoker{Name: cfg.Tool, Timeout: cfg.Timeout()}

	if version, err := invoker.Version(ctx); err == nil {
		logger.Info().Str("tool", version).Msg("formatter available")
	} else {
		// Not fatal: the tool may appear on PATH later; each save
		// reports through the sink until then.
		logger.Warn().Err(err).Msg("formatter not available yet")
	}

	sink := log.NewConsoleSink(os.Stderr)

	// The guard closes the loop between the orchestrator and the watcher:
	// a reload means the tool rewrote the file, and that write must not
	// come back around as a fresh save event. Best-effort — a rewrite
	// event racing the mark just triggers one extra run that changes
	// nothing.
	var watcher *watch.Watcher
	orch, err := orchestrate.New(orchestrate.Options{
		Invoker: invoker,
		Sink:    sink,
		OnDone: func(ev orchestrate.Event) {
			if ev.Action == orchestrate.ActionReload {
				watcher.MarkFormatted(ev.Path)
			}
		},
	})
	if err != nil {
		return errors.Errorf("creating orchestrator: %w", err)
	}

	watcher, err = watch.New(watch.Options{
		Roots:   roots,
		Include: cfg.Include,
		Exclude: cfg.Exclude,
		Handler: func(ctx context.Context, path string) {
			orch.HandleSave(ctx, watch.NewDiskBuffer(path))
		},
	})
	if err != nil {
		return errors.Errorf("creating watcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("shutting down")
	return nil
}
