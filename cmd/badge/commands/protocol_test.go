package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionExecute(t *testing.T) {
	conn := &fakeConn{onWrite: echoDevice(map[string]string{"1+1": "2"})}
	conn.push("stale output from a running program\r\n")

	session := NewSession(conn, Timing{})
	response, err := session.Execute(context.Background(), "1+1")
	require.NoError(t, err)

	assert.Equal(t, "1+1\r\n2\r\n>>> ", response)
	assert.Equal(t, "\x031+1\r\n", conn.Written())
	assert.Equal(t, 1, conn.resets)
}

func TestSessionSendDiscardsStaleInput(t *testing.T) {
	conn := &fakeConn{}
	conn.push("old junk")

	session := NewSession(conn, Timing{})
	response, err := session.Send(context.Background(), "pass")
	require.NoError(t, err)

	assert.Empty(t, response, "no answer is an empty response")
	assert.Equal(t, "pass\r\n", conn.Written())
}

func TestSessionDrainsUntilQuiet(t *testing.T) {
	conn := &fakeConn{onWrite: func(p []byte) []string {
		return []string{"help()\r\n", "Welcome ", "to MicroPython\r\n", ">>> "}
	}}

	response, err := NewSession(conn, Timing{}).Send(context.Background(), "help()")
	require.NoError(t, err)
	assert.Equal(t, "help()\r\nWelcome to MicroPython\r\n>>> ", response)
}

func TestSessionReadError(t *testing.T) {
	failure := errors.New("device unplugged")
	conn := &fakeConn{readErr: failure}

	_, err := NewSession(conn, Timing{}).Send(context.Background(), "1")
	assert.ErrorIs(t, err, failure)
}

func TestSessionSoftReset(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, NewSession(conn, Timing{}).SoftReset(context.Background()))
	assert.Equal(t, "\x04", conn.Written())
}

func TestSessionWriteAfterClose(t *testing.T) {
	conn := &fakeConn{}
	conn.Close()
	_, err := NewSession(conn, Timing{}).Execute(context.Background(), "1")
	assert.ErrorIs(t, err, errClosed)
}

func TestSessionCancelled(t *testing.T) {
	conn := &fakeConn{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSession(conn, Timing{}).Execute(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.Written())
}

func TestSessionCancelDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := &fakeConn{onWrite: func(p []byte) []string {
		if strings.HasPrefix(string(p), "slow") {
			cancel()
		}
		return nil
	}}

	session := NewSession(conn, Timing{Settle: time.Minute, Interrupt: time.Minute})
	start := time.Now()
	_, err := session.Send(ctx, "slow()")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestCancelledReportsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, cancelled(ctx, errClosed), context.Canceled)
	assert.ErrorIs(t, cancelled(context.Background(), errClosed), errClosed)
	assert.NoError(t, cancelled(ctx, nil))
}
