// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func ExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec '<code>'",
		Short: "Execute a line of Python on the badge and print the result",
		Example: "  badge exec 'import gc; print(gc.mem_free())'\n" +
			"  badge exec 'import machine; print(machine.freq())'\n" +
			"  badge exec 'import os; print(os.listdir(\"/\"))'",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := GetSettings(cmd)
			if err != nil {
				return err
			}

			dev, err := openSettings(settings)
			if err != nil {
				return err
			}
			defer dev.Close()

			ctx := cmd.Context()
			stop := context.AfterFunc(ctx, func() {
				dev.Close()
			})
			defer stop()

			return execute(ctx, NewSession(dev, defaultTiming), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
	return cmd
}

// execute runs the command, prints its output and soft resets the badge. An
// interrupted command prints nothing and leaves the badge as it is.
func execute(ctx context.Context, session *Session, out io.Writer, command string) error {
	response, err := session.Execute(ctx, command)
	if err != nil {
		return err
	}
	if lines := Scrub(response, command); len(lines) > 0 {
		fmt.Fprintln(out, strings.Join(lines, "\n"))
	}
	return session.SoftReset(ctx)
}
