// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/toitlang/badge/cmd/badge/directory"
)

const (
	PortCfgKey = "port"
	BaudCfgKey = "baud"
	ToolCfgKey = "tool"

	defaultPort = "/dev/cu.usbmodem2101"
	defaultBaud = 115200
	defaultTool = "mpremote"
)

// Settings identify the badge a command talks to. They are resolved once per
// invocation and passed to every component that needs them.
type Settings struct {
	Port string `mapstructure:"port" yaml:"port" json:"port"`
	Baud int    `mapstructure:"baud" yaml:"baud" json:"baud"`
	Tool string `mapstructure:"tool" yaml:"tool" json:"tool"`
}

func DefaultSettings() Settings {
	return Settings{
		Port: defaultPort,
		Baud: defaultBaud,
		Tool: defaultTool,
	}
}

func addSettingsFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("port", "p", defaultPort, "serial port of the badge")
	cmd.PersistentFlags().Int("baud", defaultBaud, "the baud rate of the serial port")
	cmd.PersistentFlags().String("tool", defaultTool, "the file transfer tool to invoke")
}

// GetSettings merges the defaults, the user config and any changed flags, in
// that order.
func GetSettings(cmd *cobra.Command) (Settings, error) {
	cfg, err := directory.GetUserConfig()
	if err != nil {
		return Settings{}, err
	}
	return resolveSettings(cmd, cfg)
}

func resolveSettings(cmd *cobra.Command, cfg *viper.Viper) (Settings, error) {
	res := DefaultSettings()
	if cfg.IsSet(PortCfgKey) {
		res.Port = cfg.GetString(PortCfgKey)
	}
	if cfg.IsSet(BaudCfgKey) {
		res.Baud = cfg.GetInt(BaudCfgKey)
	}
	if cfg.IsSet(ToolCfgKey) {
		res.Tool = cfg.GetString(ToolCfgKey)
	}

	flags := cmd.Flags()
	var err error
	if flags.Changed("port") {
		if res.Port, err = flags.GetString("port"); err != nil {
			return Settings{}, err
		}
	}
	if flags.Changed("baud") {
		if res.Baud, err = flags.GetInt("baud"); err != nil {
			return Settings{}, err
		}
	}
	if flags.Changed("tool") {
		if res.Tool, err = flags.GetString("tool"); err != nil {
			return Settings{}, err
		}
	}

	if res.Port == "" {
		return Settings{}, fmt.Errorf("no serial port configured. Use 'badge port set' or --port")
	}
	if res.Baud <= 0 {
		return Settings{}, fmt.Errorf("invalid baud rate %d", res.Baud)
	}
	return res, nil
}
