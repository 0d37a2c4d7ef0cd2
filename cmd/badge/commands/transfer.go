// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"
)

var (
	ErrTransferFailed   = errors.New("transfer failed")
	ErrLocalFileMissing = errors.New("local file not found")
	ErrUnsafeDirectory  = errors.New("unsafe directory in pattern")
	ErrNoMatches        = errors.New("no files matched")
)

// Runner starts the external transfer tool and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, stdout io.Writer, stderr io.Writer, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdout io.Writer, stderr io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Transfer manages files on the badge through an external tool (mpremote).
// The tool attaches with 'resume' so the badge isn't reset and its display
// keeps running.
type Transfer struct {
	Tool string
	Port string
	// Out receives the output of the tool.
	Out io.Writer
	// Err receives the diagnostics of the tool.
	Err io.Writer
	// Progress, if not nil, receives a progress bar during batch downloads.
	Progress io.Writer

	runner Runner
}

func NewTransfer(settings Settings, out io.Writer, errOut io.Writer) *Transfer {
	return &Transfer{
		Tool:   settings.Tool,
		Port:   settings.Port,
		Out:    out,
		Err:    errOut,
		runner: execRunner{},
	}
}

func remote(p string) string {
	return ":" + p
}

func (t *Transfer) run(ctx context.Context, stdout io.Writer, stderr io.Writer, args ...string) error {
	full := append([]string{"connect", t.Port, "resume"}, args...)
	logger.Debug().Str("tool", t.Tool).Strs("args", full).Msg("running transfer tool")
	if err := t.runner.Run(ctx, stdout, stderr, t.Tool, full...); err != nil {
		return fmt.Errorf("%w: '%s %s': %v", ErrTransferFailed, t.Tool, strings.Join(args, " "), err)
	}
	return nil
}

func (t *Transfer) List(ctx context.Context, dir string) error {
	return t.run(ctx, t.Out, t.Err, "fs", "ls", remote(dir))
}

func (t *Transfer) Read(ctx context.Context, file string) error {
	return t.run(ctx, t.Out, t.Err, "fs", "cat", remote(file))
}

func (t *Transfer) Write(ctx context.Context, localPath string, remotePath string) error {
	stat, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("%w: '%s'", ErrLocalFileMissing, localPath)
	}
	if stat.IsDir() {
		return fmt.Errorf("can't upload directory: '%s'", localPath)
	}
	return t.run(ctx, t.Out, t.Err, "fs", "cp", localPath, remote(remotePath))
}

func (t *Transfer) Delete(ctx context.Context, file string) error {
	return t.run(ctx, t.Out, t.Err, "fs", "rm", remote(file))
}

func (t *Transfer) Download(ctx context.Context, remotePath string, localPath string) error {
	return t.run(ctx, t.Out, t.Err, "fs", "cp", remote(remotePath), localPath)
}

func hasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

// literalBrackets escapes the characters path.Match treats as special besides
// '*' and '?', so that '[' and '\' match themselves.
func literalBrackets(name string) string {
	return strings.NewReplacer(`\`, `\\`, "[", `\[`).Replace(name)
}

// splitPattern splits a remote pattern into its directory and file name
// parts. An omitted directory is the root.
func splitPattern(pattern string) (dir string, name string) {
	idx := strings.LastIndex(pattern, "/")
	if idx < 0 {
		return "/", pattern
	}
	dir = pattern[:idx]
	if dir == "" {
		dir = "/"
	}
	return dir, pattern[idx+1:]
}

func qualify(dir string, name string) string {
	trimmed := strings.TrimRight(dir, "/")
	if trimmed == "" {
		return "/" + name
	}
	return trimmed + "/" + name
}

// pyLiteral quotes s as a Python string literal. The caller must have rejected
// quotes and line breaks.
func pyLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, `\`, `\\`) + "'"
}

func listDirectoryCode(dir string) string {
	return "import os\nfor n in os.listdir(" + pyLiteral(dir) + "):\n print(n)"
}

// listEntries asks the interpreter for the names in dir, in the order the
// badge's filesystem returns them.
func (t *Transfer) listEntries(ctx context.Context, dir string) ([]string, error) {
	var out bytes.Buffer
	if err := t.run(ctx, &out, t.Err, "exec", listDirectoryCode(dir)); err != nil {
		return nil, err
	}
	var entries []string
	for _, line := range strings.Split(out.String(), "\n") {
		if entry := strings.TrimRight(line, "\r"); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// ExpandGlob returns the remote paths matching pattern. A pattern without '*'
// or '?' is returned as is without touching the badge.
func (t *Transfer) ExpandGlob(ctx context.Context, pattern string) ([]string, error) {
	if !hasWildcard(pattern) {
		return []string{pattern}, nil
	}

	dir, name := splitPattern(pattern)
	if strings.ContainsAny(dir, "'\"\n\r") {
		return nil, fmt.Errorf("%w: '%s'", ErrUnsafeDirectory, dir)
	}

	entries, err := t.listEntries(ctx, dir)
	if err != nil {
		return nil, err
	}

	glob := literalBrackets(name)
	var res []string
	for _, entry := range entries {
		if ok, _ := path.Match(glob, entry); ok {
			res = append(res, qualify(dir, entry))
		}
	}
	return res, nil
}

type FailedTransfer struct {
	Remote string
	Output string
}

// BatchResult describes a batch download.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    []FailedTransfer
}

func (r *BatchResult) OK() bool {
	return len(r.Failed) == 0
}

// DownloadGlob copies every remote file matching pattern into localDir. A
// failed file doesn't stop the remaining ones. When nothing matches, localDir
// isn't created.
func (t *Transfer) DownloadGlob(ctx context.Context, pattern string, localDir string) (*BatchResult, error) {
	matches, err := t.ExpandGlob(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: '%s'", ErrNoMatches, pattern)
	}

	if err := os.MkdirAll(localDir, 0755); err != nil {
		return nil, err
	}

	var bar *pb.ProgressBar
	if t.Progress != nil {
		bar = pb.New(len(matches)).SetWriter(t.Progress).Start()
	}

	res := &BatchResult{Total: len(matches)}
	for _, match := range matches {
		localPath := filepath.Join(localDir, path.Base(match))
		var output bytes.Buffer
		err := t.run(ctx, &output, &output, "fs", "cp", remote(match), localPath)
		if bar != nil {
			bar.Increment()
		} else if err == nil {
			fmt.Fprintf(t.Out, "  %s -> %s\n", match, localPath)
		}
		if err != nil {
			res.Failed = append(res.Failed, FailedTransfer{
				Remote: match,
				Output: strings.TrimSpace(output.String()),
			})
			continue
		}
		res.Succeeded++
	}
	if bar != nil {
		bar.Finish()
	}
	return res, nil
}
