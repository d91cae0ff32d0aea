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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kettleby/savefmt/pkg/tool"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// newVersionCmd reports the daemon version and probes the formatter.
func newVersionCmd() *cobra.Command {
	var toolName string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print savefmt and formatter versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			fmt.Fprintf(cmd.OutOrStdout(), "savefmt %s\n", Version)

			invoker := tool.Invoker{Name: toolName}
			version, err := invoker.Version(ctx)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "formatter: %v\n", err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "formatter: %s\n", version)
			return nil
		},
	}

	cmd.Flags().StringVar(&toolName, "tool", "", "formatter executable (default \"dprint\")")
	return cmd
}
