// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"

	"github.com/spf13/cobra"
)

type ctxKey string

const (
	ctxKeyInfo ctxKey = "info"
)

type Info struct {
	Version string `mapstructure:"version" yaml:"version" json:"version"`
	Date    string `mapstructure:"date" yaml:"date" json:"date"`
}

func SetInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, ctxKeyInfo, info)
}

func GetInfo(ctx context.Context) Info {
	return ctx.Value(ctxKeyInfo).(Info)
}

func BadgeCmd(info Info, isReleaseBuild bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "badge",
		Short: "Talk to your MicroPython conference badge over USB serial",
		Long: "Badge is a small toolbox for the ESP32-S3 conference badge running MicroPython.\n\n" +
			"It gathers device information, monitors the serial output, opens an interactive\n" +
			"REPL, executes one-off commands, and manages the files on the badge. File\n" +
			"operations are delegated to mpremote, which attaches without resetting the\n" +
			"device so the display keeps running.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			configureLogger(cmd.ErrOrStderr(), verbose)
		},
	}

	addSettingsFlags(cmd)
	cmd.PersistentFlags().BoolP("verbose", "v", false, "trace the serial protocol on stderr")

	cmd.AddCommand(
		InfoCmd(),
		MonitorCmd(),
		ReplCmd(),
		ExecCmd(),
		LsCmd(),
		CatCmd(),
		DownloadCmd(),
		UploadCmd(),
		RmCmd(),
		PortCmd(),
		ConfigCmd(),
		VersionCmd(info, isReleaseBuild),
	)
	return cmd
}
