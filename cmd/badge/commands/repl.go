// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func ReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "repl",
		Short:        "Open an interactive Python REPL on the badge",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := GetSettings(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connecting to badge on %s...\n", settings.Port)
			dev, err := openSettings(settings)
			if err != nil {
				return err
			}
			defer dev.Close()

			console, consoleOut, err := openConsole(out)
			if err != nil {
				return err
			}
			defer console.Close()

			fmt.Fprintln(consoleOut, "Connected! Press Ctrl+C to interrupt, Ctrl+D to exit.")
			fmt.Fprintln(consoleOut, strings.Repeat("=", 60))

			terminal := NewTerminal(dev, console, consoleOut)
			if err := terminal.Run(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(consoleOut, "\nExiting...")
			return nil
		},
	}
	return cmd
}

// LineReader reads one line of console input. Ctrl-C is reported as
// readline.ErrInterrupt and the end of input as io.EOF.
type LineReader interface {
	Readline() (string, error)
}

type console interface {
	LineReader
	io.Closer
}

// openConsole uses a line editor when stdin is a terminal. The returned writer
// must be used for output so it doesn't clobber the line being edited.
func openConsole(out io.Writer) (console, io.Writer, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return &scannerConsole{scanner: bufio.NewScanner(os.Stdin)}, out, nil
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return nil, nil, err
	}
	return rl, rl.Stdout(), nil
}

type scannerConsole struct {
	scanner *bufio.Scanner
}

func (c *scannerConsole) Readline() (string, error) {
	if c.scanner.Scan() {
		return c.scanner.Text(), nil
	}
	if err := c.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (c *scannerConsole) Close() error {
	return nil
}

// Terminal connects the console to the interpreter on the badge.
//
// A reader goroutine forwards device output to a renderer while the caller's
// goroutine forwards console lines to the device. The reader only reads and
// the caller only writes, so the connection needs no lock. Closing the
// connection stops the reader.
type Terminal struct {
	conn    Conn
	console LineReader
	out     io.Writer

	// startDelay is the pause before the initial interrupt.
	startDelay time.Duration
}

func NewTerminal(conn Conn, console LineReader, out io.Writer) *Terminal {
	return &Terminal{
		conn:       conn,
		console:    console,
		out:        out,
		startDelay: 500 * time.Millisecond,
	}
}

type consoleLine struct {
	line string
	err  error
}

// Run returns when the console reaches the end of input or ctx is done. The
// connection is closed when Run returns.
func (t *Terminal) Run(ctx context.Context) error {
	chunks := make(chan []byte, 16)
	go t.readDevice(chunks)

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for chunk := range chunks {
			t.out.Write(chunk)
		}
	}()

	defer func() {
		t.conn.Close()
		<-rendered
	}()

	time.Sleep(t.startDelay)
	if _, err := t.conn.Write([]byte{interruptByte}); err != nil {
		return err
	}

	lines := make(chan consoleLine)
	go func() {
		for {
			line, err := t.console.Readline()
			select {
			case lines <- consoleLine{line, err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !errors.Is(err, readline.ErrInterrupt) {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-lines:
			switch {
			case errors.Is(in.err, readline.ErrInterrupt):
				fmt.Fprintln(t.out, "\nSending interrupt...")
				if _, err := t.conn.Write([]byte{interruptByte}); err != nil {
					return err
				}
			case errors.Is(in.err, io.EOF):
				return nil
			case in.err != nil:
				return in.err
			default:
				if _, err := t.conn.Write([]byte(in.line + lineTerminator)); err != nil {
					return err
				}
			}
		}
	}
}

func (t *Terminal) readDevice(chunks chan<- []byte) {
	defer close(chunks)
	buf := make([]byte, 1024)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			logger.Debug().Err(err).Msg("stopped reading from the badge")
			return
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunks <- chunk
		}
	}
}
