// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const monitorTimeFormat = "2006-01-02 15:04:05.000"

func MonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor [logfile]",
		Short: "Monitor the serial output of the badge with timestamps",
		Long: "Monitor the serial output of the badge. Every line is prefixed with a timestamp.\n" +
			"If a log file is given, the lines are also appended to it.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reboot, err := cmd.Flags().GetBool("reboot")
			if err != nil {
				return err
			}

			settings, err := GetSettings(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var logFile *os.File
			if len(args) == 1 {
				logFile, err = os.OpenFile(args[0], os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err != nil {
					return err
				}
				defer func() {
					logFile.Close()
					fmt.Fprintf(out, "Log saved to: %s\n", logFile.Name())
				}()
				fmt.Fprintf(out, "Logging to: %s\n", logFile.Name())
			}

			fmt.Fprintln(out, "Badge Monitor")
			fmt.Fprintln(out, strings.Repeat("=", 60))
			fmt.Fprintf(out, "Port: %s @ %d baud\n", settings.Port, settings.Baud)
			fmt.Fprintln(out, "Press Ctrl+C to exit")
			fmt.Fprintln(out, strings.Repeat("=", 60))

			dev, err := openSettings(settings)
			if err != nil {
				return err
			}
			defer dev.Close()

			if reboot {
				dev.Reboot()
			}

			stamper := newLineStamper(out, time.Now)
			if logFile != nil {
				stamper.log = logFile
			}
			if err := monitor(cmd.Context(), dev, stamper); err != nil {
				fmt.Fprintln(out, "\nError:", err)
				return err
			}
			fmt.Fprintln(out, "\n\nMonitoring stopped.")
			return nil
		},
	}
	cmd.Flags().BoolP("reboot", "r", false, "hard reset the badge before monitoring")
	return cmd
}

// monitor copies stamped lines from conn until ctx is done.
func monitor(ctx context.Context, conn Conn, stamper *lineStamper) error {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				stamper.Flush()
				return nil
			}
			return err
		}
		if n == 0 {
			stamper.Flush()
			continue
		}
		stamper.Write(buf[:n])
	}
}

// lineStamper prefixes every non-blank line with a timestamp. Partial lines are
// kept until the rest arrives or Flush is called.
type lineStamper struct {
	out     io.Writer
	log     io.Writer
	now     func() time.Time
	partial []byte
}

func newLineStamper(out io.Writer, now func() time.Time) *lineStamper {
	return &lineStamper{
		out: out,
		now: now,
	}
}

func (s *lineStamper) Write(p []byte) (int, error) {
	s.partial = append(s.partial, p...)
	for {
		idx := bytes.IndexByte(s.partial, '\n')
		if idx < 0 {
			break
		}
		s.emit(string(s.partial[:idx]))
		s.partial = s.partial[idx+1:]
	}
	return len(p), nil
}

// Flush emits the pending partial line.
func (s *lineStamper) Flush() {
	if len(s.partial) == 0 {
		return
	}
	s.emit(string(s.partial))
	s.partial = nil
}

func (s *lineStamper) emit(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	stamped := fmt.Sprintf("[%s] %s\n", s.now().Format(monitorTimeFormat), line)
	io.WriteString(s.out, stamped)
	if s.log != nil {
		io.WriteString(s.log, stamped)
	}
}
