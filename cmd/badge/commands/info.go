// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Probe is a piece of device information and the interpreter command that
// produces it.
type Probe struct {
	Title   string   `mapstructure:"title" yaml:"title" json:"title"`
	Command string   `mapstructure:"command" yaml:"command" json:"command"`
	Output  []string `mapstructure:"output" yaml:"output" json:"output"`
}

func (p Probe) Short() string {
	return p.Title + ": " + strings.Join(p.Output, " ")
}

type Probes []Probe

func (ps Probes) Elements() []Short {
	var res []Short
	for _, p := range ps {
		res = append(res, p)
	}
	return res
}

var infoProbes = []Probe{
	{Title: "System Implementation", Command: "import sys; sys.implementation"},
	{Title: "MicroPython Version", Command: "sys.version"},
	{Title: "CPU Frequency", Command: "import machine; machine.freq()"},
	{Title: "Unique ID", Command: "import ubinascii; ubinascii.hexlify(machine.unique_id())"},
	{Title: "Flash Size", Command: "import esp; esp.flash_size()"},
	{Title: "Free Memory", Command: "import gc; gc.mem_free()"},
	{Title: "Allocated Memory", Command: "gc.mem_alloc()"},
	{Title: "Root Directory", Command: "import os; os.listdir('/')"},
	{Title: "Apps Directory", Command: "os.listdir('/apps')"},
	{Title: "WiFi Status", Command: "import network; sta = network.WLAN(network.STA_IF); sta.active()"},
}

func InfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "info",
		Short:        "Show system information of the badge",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := parseOutputFlag(cmd)
			if err != nil {
				return err
			}

			settings, err := GetSettings(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if enc == nil {
				fmt.Fprintln(out, "Badge Information Gatherer")
				fmt.Fprintln(out, strings.Repeat("=", 60))
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

			if enc == nil {
				fmt.Fprintf(out, "Connected to %s\n", settings.Port)
			}

			timing := defaultTiming
			timing.Interrupt = time.Second
			session := NewSession(dev, timing)
			probes, err := gatherInfo(ctx, session, infoProbes)
			if err != nil {
				if ctx.Err() != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "\nInterrupted by user")
				}
				return err
			}

			if enc != nil {
				if err := enc.Encode(Probes(probes)); err != nil {
					return err
				}
			} else {
				printInfo(out, probes)
				fmt.Fprintln(out, "\nResetting badge...")
			}
			return session.SoftReset(ctx)
		},
	}
	addOutputFlag(cmd)
	return cmd
}

// gatherInfo interrupts the badge once and runs every probe in order. Later
// probes may rely on imports done by earlier ones.
func gatherInfo(ctx context.Context, session *Session, probes []Probe) ([]Probe, error) {
	if err := session.Interrupt(ctx); err != nil {
		return nil, err
	}
	res := make([]Probe, 0, len(probes))
	for _, p := range probes {
		response, err := session.Send(ctx, p.Command)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, fmt.Errorf("failed to query '%s': %w", p.Title, err)
		}
		p.Output = Scrub(response, p.Command)
		res = append(res, p)
	}
	return res, nil
}

func printInfo(out io.Writer, probes []Probe) {
	for _, p := range probes {
		fmt.Fprintf(out, "\n%s:\n", p.Title)
		fmt.Fprintln(out, strings.Repeat("-", 40))
		for _, line := range p.Output {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	fmt.Fprintln(out, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(out, "Information gathering complete!")
}
