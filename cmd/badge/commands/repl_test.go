package commands

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/chzyer/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConsole returns the scripted lines. Before the last one it waits
// for release to be closed.
type scriptedConsole struct {
	lines   []consoleLine
	release chan struct{}
}

func (c *scriptedConsole) Readline() (string, error) {
	if len(c.lines) == 1 && c.release != nil {
		<-c.release
	}
	if len(c.lines) == 0 {
		select {}
	}
	next := c.lines[0]
	c.lines = c.lines[1:]
	return next.line, next.err
}

func TestTerminal(t *testing.T) {
	conn := &fakeConn{onWrite: echoDevice(map[string]string{"1+1": "2"})}
	console := &scriptedConsole{
		lines: []consoleLine{
			{line: "1+1"},
			{err: readline.ErrInterrupt},
			{err: io.EOF},
		},
		release: make(chan struct{}),
	}
	out := &syncBuffer{}

	terminal := NewTerminal(conn, console, out)
	terminal.startDelay = 0

	done := make(chan error, 1)
	go func() {
		done <- terminal.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Sending interrupt...") &&
			strings.Count(out.String(), ">>> ") >= 3
	}, time.Second, time.Millisecond)
	close(console.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("terminal didn't stop at end of input")
	}

	assert.Equal(t, "\x031+1\r\n\x03", conn.Written())
	assert.Contains(t, out.String(), "1+1\r\n2\r\n>>> ")
	assert.True(t, conn.IsClosed())
}

func TestTerminalStopsOnCancel(t *testing.T) {
	conn := &fakeConn{}
	console := &scriptedConsole{}

	terminal := NewTerminal(conn, console, &syncBuffer{})
	terminal.startDelay = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- terminal.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("terminal didn't stop on cancel")
	}
	assert.True(t, conn.IsClosed())
}

func TestScannerConsole(t *testing.T) {
	console := &scannerConsole{scanner: bufio.NewScanner(strings.NewReader("first\nsecond\n"))}

	line, err := console.Readline()
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = console.Readline()
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	_, err = console.Readline()
	assert.ErrorIs(t, err, io.EOF)
}
