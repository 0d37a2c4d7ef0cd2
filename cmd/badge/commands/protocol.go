// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"bytes"
	"context"
	"time"
)

const (
	// Ctrl-C. Stops the running program and returns the interpreter to its prompt.
	interruptByte = 0x03
	// Ctrl-D. Soft resets the interpreter.
	softResetByte = 0x04

	lineTerminator = "\r\n"
)

// Timing holds the pauses the line protocol relies on. The interpreter has no
// response framing, so the end of a response is only observable as silence.
type Timing struct {
	// Settle is the pause after writing a command before draining.
	Settle time.Duration
	// Interrupt is the pause after sending an interrupt.
	Interrupt time.Duration
	// Poll is the read window used to decide that the device went quiet.
	Poll time.Duration
}

var defaultTiming = Timing{
	Settle:    500 * time.Millisecond,
	Interrupt: 500 * time.Millisecond,
	Poll:      100 * time.Millisecond,
}

// Session sends commands to the interpreter on the badge and collects the raw
// responses. Responses are best effort: slow commands can be truncated.
type Session struct {
	conn   Conn
	timing Timing
}

func NewSession(conn Conn, timing Timing) *Session {
	return &Session{
		conn:   conn,
		timing: timing,
	}
}

// Interrupt forces the interpreter out of any running program and into its
// interactive prompt.
func (s *Session) Interrupt(ctx context.Context) error {
	logger.Debug().Msg("sending interrupt")
	if err := s.write(ctx, []byte{interruptByte}); err != nil {
		return err
	}
	return pause(ctx, s.timing.Interrupt)
}

// SoftReset restarts the interpreter.
func (s *Session) SoftReset(ctx context.Context) error {
	logger.Debug().Msg("sending soft reset")
	if err := s.write(ctx, []byte{softResetByte}); err != nil {
		return err
	}
	return pause(ctx, s.timing.Settle)
}

// Send writes the command after discarding stale input and returns everything
// the device printed until it went quiet.
func (s *Session) Send(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.conn.ResetInputBuffer(); err != nil {
		return "", cancelled(ctx, err)
	}
	logger.Debug().Str("command", command).Msg("sending command")
	if err := s.write(ctx, []byte(command+lineTerminator)); err != nil {
		return "", err
	}
	if err := pause(ctx, s.timing.Settle); err != nil {
		return "", err
	}
	return s.drain(ctx)
}

// Execute interrupts whatever runs on the device and sends the command.
func (s *Session) Execute(ctx context.Context, command string) (string, error) {
	if err := s.Interrupt(ctx); err != nil {
		return "", err
	}
	return s.Send(ctx, command)
}

func (s *Session) write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.conn.Write(p)
	return cancelled(ctx, err)
}

func (s *Session) drain(ctx context.Context) (string, error) {
	var response bytes.Buffer
	buf := make([]byte, 1024)
	for {
		if err := ctx.Err(); err != nil {
			return response.String(), err
		}
		n, err := s.conn.Read(buf)
		if err != nil {
			return response.String(), cancelled(ctx, err)
		}
		if n == 0 {
			break
		}
		response.Write(buf[:n])
	}
	logger.Debug().Int("bytes", response.Len()).Msg("drained response")
	return response.String(), nil
}

// cancelled reports the context error instead of err once ctx is done. The
// connection is closed on cancellation, so its errors are a consequence.
func cancelled(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
