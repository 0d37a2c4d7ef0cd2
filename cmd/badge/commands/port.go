// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/toitlang/badge/cmd/badge/directory"
	"go.bug.st/serial"
)

func PortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "port",
		Short:        "Show the serial port used to talk to the badge",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := cmd.Flags().GetBool("list")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if list {
				ports, err := serial.GetPortsList()
				if err != nil {
					return err
				}
				for _, p := range ports {
					fmt.Fprintln(out, p)
				}
				return nil
			}

			settings, err := GetSettings(cmd)
			if err != nil {
				return err
			}
			exists, err := PortExists(settings.Port)
			if err != nil {
				return err
			}
			status := "found"
			if !exists {
				status = "not found"
			}
			fmt.Fprintf(out, "%s (%s)\n", settings.Port, status)
			return nil
		},
	}
	cmd.Flags().BoolP("list", "l", false, "list all serial ports")
	cmd.AddCommand(SetPortCmd())
	return cmd
}

func SetPortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "set [port]",
		Short:        "Select the serial port you want to use",
		Long:         "Select the serial port you want to use. Without an argument you pick from the detected ports.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}

			var port string
			if len(args) == 1 {
				port = args[0]
			} else if port, err = pickPort(all); err != nil {
				return err
			}

			cfg, err := directory.GetUserConfig()
			if err != nil {
				return err
			}
			cfg.Set(PortCfgKey, port)
			if err := directory.WriteConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Using port '%s'\n", port)
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "if set, will show all available ports")
	return cmd
}

func PortExists(port string) (bool, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return false, err
	}
	for _, p := range ports {
		if p == port {
			return true, nil
		}
	}
	return false, nil
}

func pickPort(all bool) (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", err
	}
	if !all {
		ports = filterPorts(runtime.GOOS, ports)
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("no serial ports detected. Is the badge plugged in?")
	}

	prompt := promptui.Select{
		Label:     "Choose the serial port of your badge",
		Items:     ports,
		Templates: &promptui.SelectTemplates{},
	}

	i, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("you didn't select anything")
	}

	return ports[i], nil
}

func filterPorts(goos string, ports []string) []string {
	switch goos {
	case "darwin":
		return darwinFilterPaths(ports)
	case "linux":
		return linuxFilterPaths(ports)
	default:
		return ports
	}
}

// darwinFilterPaths prefers the call-out devices and hides Bluetooth ports.
func darwinFilterPaths(paths []string) []string {
	existing := map[string]struct{}{}
	for _, p := range paths {
		existing[p] = struct{}{}
	}
	var res []string
	for _, path := range paths {
		if strings.Contains(path, "Bluetooth") {
			continue
		}
		if strings.HasPrefix(path, "/dev/cu.") {
			res = append(res, path)
		} else if strings.HasPrefix(path, "/dev/tty.") {
			candidate := "/dev/cu." + strings.TrimPrefix(path, "/dev/tty.")
			if _, exists := existing[candidate]; !exists {
				res = append(res, path)
			}
		}
	}
	return res
}

// The ESP32-S3 shows up as a USB CDC device.
func linuxFilterPaths(paths []string) []string {
	var res []string
	for _, path := range paths {
		if strings.Contains(path, "ttyACM") || strings.Contains(path, "ttyUSB") {
			res = append(res, path)
		}
	}
	return res
}
