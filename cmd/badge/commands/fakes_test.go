package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

var errClosed = errors.New("port closed")

// fakeConn is an in-memory Conn. onWrite decides what the device answers.
type fakeConn struct {
	mu      sync.Mutex
	written bytes.Buffer
	queue   [][]byte
	resets  int
	closed  bool
	readErr error

	onWrite func(p []byte) []string
}

func (c *fakeConn) push(chunks ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, chunk := range chunks {
		c.queue = append(c.queue, []byte(chunk))
	}
}

func (c *fakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, errClosed
	}
	if c.readErr != nil {
		c.mu.Unlock()
		return 0, c.readErr
	}
	if len(c.queue) == 0 {
		c.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	chunk := c.queue[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		c.queue[0] = chunk[n:]
	} else {
		c.queue = c.queue[1:]
	}
	c.mu.Unlock()
	return n, nil
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, errClosed
	}
	c.written.Write(p)
	onWrite := c.onWrite
	c.mu.Unlock()
	if onWrite != nil {
		c.push(onWrite(p)...)
	}
	return len(p), nil
}

func (c *fakeConn) ResetInputBuffer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	c.queue = nil
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.String()
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// echoDevice answers like the MicroPython REPL: it echoes the command and
// prints the given output followed by a prompt.
func echoDevice(outputs map[string]string) func(p []byte) []string {
	return func(p []byte) []string {
		command := strings.TrimSuffix(string(p), lineTerminator)
		if len(p) == 1 {
			return []string{"\r\n>>> "}
		}
		out, ok := outputs[command]
		if !ok {
			return []string{command + "\r\n>>> "}
		}
		return []string{command + "\r\n", out + "\r\n>>> "}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type runnerCall struct {
	name string
	args []string
}

// fakeRunner records tool invocations. respond returns what the tool prints
// and whether it fails.
type fakeRunner struct {
	calls   []runnerCall
	respond func(args []string) (string, error)
}

func (r *fakeRunner) Run(ctx context.Context, stdout io.Writer, stderr io.Writer, name string, args ...string) error {
	r.calls = append(r.calls, runnerCall{name: name, args: args})
	if r.respond == nil {
		return nil
	}
	out, err := r.respond(args)
	io.WriteString(stdout, out)
	return err
}

func newTestTransfer(runner *fakeRunner) (*Transfer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Transfer{
		Tool:   "mpremote",
		Port:   "/dev/ttyACM0",
		Out:    out,
		Err:    out,
		runner: runner,
	}, out
}
