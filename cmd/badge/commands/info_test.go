package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherInfo(t *testing.T) {
	conn := &fakeConn{onWrite: echoDevice(map[string]string{
		"import machine; machine.freq()": "240000000",
		"import os; os.listdir('/')":     "['apps', 'main.py']",
	})}
	probes := []Probe{
		{Title: "CPU Frequency", Command: "import machine; machine.freq()"},
		{Title: "Root Directory", Command: "import os; os.listdir('/')"},
		{Title: "Nothing", Command: "pass"},
	}

	res, err := gatherInfo(context.Background(), NewSession(conn, Timing{}), probes)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []string{"240000000"}, res[0].Output)
	assert.Equal(t, []string{"['apps', 'main.py']"}, res[1].Output)
	assert.Empty(t, res[2].Output)

	written := conn.Written()
	assert.Equal(t, 1, strings.Count(written, "\x03"), "interrupts once")
	assert.True(t, strings.HasPrefix(written, "\x03import machine; machine.freq()\r\n"))

	var out bytes.Buffer
	printInfo(&out, res)
	assert.Contains(t, out.String(), "\nCPU Frequency:\n"+strings.Repeat("-", 40)+"\n  240000000\n")
	assert.Contains(t, out.String(), "Information gathering complete!")
}

func TestProbesShort(t *testing.T) {
	var out bytes.Buffer
	probes := Probes{
		{Title: "Free Memory", Output: []string{"123456"}},
		{Title: "Flash Size", Output: []string{"8388608"}},
	}
	require.NoError(t, newShortEncoder(&out).Encode(probes))
	assert.Equal(t, "Free Memory: 123456\nFlash Size: 8388608\n", out.String())
}

func TestExecute(t *testing.T) {
	conn := &fakeConn{onWrite: echoDevice(map[string]string{
		"import gc; print(gc.mem_free())": "123456",
	})}

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), NewSession(conn, Timing{}), &out, "import gc; print(gc.mem_free())"))
	assert.Equal(t, "123456\n", out.String())
	assert.Equal(t, "\x03import gc; print(gc.mem_free())\r\n\x04", conn.Written())
}

func TestExecuteNoOutput(t *testing.T) {
	conn := &fakeConn{onWrite: echoDevice(nil)}

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), NewSession(conn, Timing{}), &out, "x = 1"))
	assert.Empty(t, out.String())
}

func TestGatherInfoInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	device := echoDevice(map[string]string{"sys.version": "3.4.0"})
	conn := &fakeConn{onWrite: func(p []byte) []string {
		if strings.HasPrefix(string(p), "sys.version") {
			cancel()
		}
		return device(p)
	}}
	probes := []Probe{
		{Title: "MicroPython Version", Command: "sys.version"},
		{Title: "Free Memory", Command: "import gc; gc.mem_free()"},
	}

	res, err := gatherInfo(ctx, NewSession(conn, Timing{}), probes)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.NotContains(t, conn.Written(), "gc.mem_free()")
}

func TestExecuteInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := &fakeConn{onWrite: func(p []byte) []string {
		cancel()
		return nil
	}}

	var out bytes.Buffer
	err := execute(ctx, NewSession(conn, Timing{}), &out, "while True: pass")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
	assert.NotContains(t, conn.Written(), "\x04", "no soft reset after an interrupt")
}
