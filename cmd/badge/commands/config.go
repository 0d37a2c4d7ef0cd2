// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/toitlang/badge/cmd/badge/directory"
	"gopkg.in/yaml.v2"
)

func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configure the badge tool",
		Long: "Configure the badge command line tool.\n\n" +
			"Settings are stored in the user config file. Command line flags take\n" +
			"precedence over stored settings.",
	}

	showCmd := &cobra.Command{
		Use:          "show",
		Short:        "Show the settings in effect",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := GetSettings(cmd)
			if err != nil {
				return err
			}
			enc, err := parseOutputFlag(cmd)
			if err != nil {
				return err
			}
			if enc == nil {
				enc = yaml.NewEncoder(cmd.OutOrStdout())
			}
			return enc.Encode(settings)
		},
	}
	addOutputFlag(showCmd)

	cmd.AddCommand(
		showCmd,
		&cobra.Command{
			Use:          "baud <rate>",
			Short:        "Store the baud rate of the serial port",
			Args:         cobra.ExactArgs(1),
			SilenceUsage: true,
			RunE: func(_ *cobra.Command, args []string) error {
				baud, err := strconv.Atoi(args[0])
				if err != nil || baud <= 0 {
					return fmt.Errorf("invalid baud rate '%s'", args[0])
				}
				return storeSetting(BaudCfgKey, baud)
			},
		},
		&cobra.Command{
			Use:          "tool <path>",
			Short:        "Store the file transfer tool to invoke (mpremote)",
			Args:         cobra.ExactArgs(1),
			SilenceUsage: true,
			RunE: func(_ *cobra.Command, args []string) error {
				return storeSetting(ToolCfgKey, args[0])
			},
		},
		&cobra.Command{
			Use:          "clear",
			Short:        "Delete all stored settings",
			Args:         cobra.NoArgs,
			SilenceUsage: true,
			RunE: func(_ *cobra.Command, _ []string) error {
				return directory.RemoveUserConfig()
			},
		},
	)
	return cmd
}

func storeSetting(key string, value interface{}) error {
	cfg, err := directory.GetUserConfig()
	if err != nil {
		return err
	}
	cfg.Set(key, value)
	return directory.WriteConfig(cfg)
}
