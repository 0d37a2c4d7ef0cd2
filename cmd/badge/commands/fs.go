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
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func transferFromCmd(cmd *cobra.Command) (*Transfer, error) {
	settings, err := GetSettings(cmd)
	if err != nil {
		return nil, err
	}
	return NewTransfer(settings, cmd.OutOrStdout(), cmd.ErrOrStderr()), nil
}

func LsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ls [path]",
		Short:        "List the files in a directory on the badge",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			transfer, err := transferFromCmd(cmd)
			if err != nil {
				return err
			}
			dir := "/"
			if len(args) == 1 {
				dir = args[0]
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listing files in: %s\n", dir)
			return transfer.List(cmd.Context(), dir)
		},
	}
	return cmd
}

func CatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cat <file>",
		Short:        "Print the contents of a file on the badge",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			transfer, err := transferFromCmd(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reading file: %s\n", args[0])
			fmt.Fprintln(out, strings.Repeat("-", 60))
			return transfer.Read(cmd.Context(), args[0])
		},
	}
	return cmd
}

func DownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <remote> <local>",
		Short: "Download a file from the badge",
		Long: "Download a file from the badge.\n\n" +
			"If <remote> contains '*' or '?' it is treated as a glob pattern on the file\n" +
			"name, and every matching file is downloaded into the <local> directory.\n" +
			"Only '*' and '?' are wildcards; '[' and '\\' match themselves:\n\n" +
			"  badge download '/apps/*.py' ./files/",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			transfer, err := transferFromCmd(cmd)
			if err != nil {
				return err
			}
			if stderr, ok := cmd.ErrOrStderr().(*os.File); ok && term.IsTerminal(int(stderr.Fd())) {
				transfer.Progress = stderr
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			remotePath, localPath := args[0], args[1]
			if hasWildcard(remotePath) {
				return downloadGlob(ctx, out, transfer, remotePath, localPath)
			}

			fmt.Fprintf(out, "Downloading: %s -> %s\n", remotePath, localPath)
			if err := transfer.Download(ctx, remotePath, localPath); err != nil {
				fmt.Fprintln(out, "✗ Download failed!")
				return err
			}
			if size, lines, err := describeLocalFile(localPath); err == nil {
				fmt.Fprintf(out, "✓ Download successful! %d bytes (%d lines) saved to: %s\n", size, lines, localPath)
			} else {
				fmt.Fprintln(out, "✓ Download completed")
			}
			return nil
		},
	}
	return cmd
}

func downloadGlob(ctx context.Context, out io.Writer, transfer *Transfer, pattern string, localDir string) error {
	fmt.Fprintf(out, "Downloading: %s -> %s\n", pattern, localDir)
	res, err := transfer.DownloadGlob(ctx, pattern, localDir)
	if err != nil {
		fmt.Fprintln(out, "✗ Download failed!")
		return err
	}
	for _, failed := range res.Failed {
		fmt.Fprintf(out, "  ✗ %s\n", failed.Remote)
		if failed.Output != "" {
			fmt.Fprintf(out, "    %s\n", strings.ReplaceAll(failed.Output, "\n", "\n    "))
		}
	}
	if !res.OK() {
		fmt.Fprintf(out, "✗ Downloaded %d of %d files\n", res.Succeeded, res.Total)
		return fmt.Errorf("%w: %d of %d files", ErrTransferFailed, len(res.Failed), res.Total)
	}
	fmt.Fprintf(out, "✓ Downloaded %d of %d files to: %s\n", res.Succeeded, res.Total, localDir)
	return nil
}

// describeLocalFile returns the size and the number of lines of a file.
func describeLocalFile(path string) (int64, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	lines := bytes.Count(b, []byte{'\n'})
	if len(b) > 0 && b[len(b)-1] != '\n' {
		lines++
	}
	return int64(len(b)), lines, nil
}

func UploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "upload <local> <remote>",
		Short:        "Upload a file to the badge",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			watch, err := cmd.Flags().GetBool("watch")
			if err != nil {
				return err
			}

			transfer, err := transferFromCmd(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			localPath, remotePath := args[0], args[1]
			if err := upload(ctx, out, transfer, localPath, remotePath); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchAndUpload(ctx, out, transfer, localPath, remotePath)
		},
	}
	cmd.Flags().BoolP("watch", "w", false, "keep running and upload the file again whenever it changes")
	return cmd
}

func upload(ctx context.Context, out io.Writer, transfer *Transfer, localPath string, remotePath string) error {
	fmt.Fprintf(out, "Uploading: %s -> %s\n", localPath, remotePath)
	if err := transfer.Write(ctx, localPath, remotePath); err != nil {
		fmt.Fprintln(out, "✗ Upload failed!")
		return err
	}
	fmt.Fprintln(out, "✓ Upload successful!")
	return nil
}

func watchAndUpload(ctx context.Context, out io.Writer, transfer *Transfer, localPath string, remotePath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors often replace the file instead of writing it, so watch the
	// directory.
	dir := filepath.Dir(localPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(localPath))
	fmt.Fprintf(out, "Watching '%s' for changes. Press Ctrl+C to stop.\n", localPath)

	fired := false
	tickerDuration := 100 * time.Millisecond
	ticker := time.NewTicker(tickerDuration)
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || fired {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fmt.Fprintf(out, "File modified '%s'\n", event.Name)
				if err := upload(ctx, out, transfer, localPath, remotePath); err != nil {
					fmt.Fprintln(out, "Error:", err)
				}
				fired = true
				ticker.Reset(tickerDuration)
			}
		case <-ticker.C:
			fired = false
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(out, "Watch error:", err)
		case <-ctx.Done():
			fmt.Fprintln(out, "\nStopped watching.")
			return nil
		}
	}
}

func RmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rm <file>",
		Short:        "Delete a file on the badge",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			transfer, err := transferFromCmd(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleting: %s\n", args[0])
			if err := transfer.Delete(cmd.Context(), args[0]); err != nil {
				fmt.Fprintln(out, "✗ Delete failed!")
				return err
			}
			fmt.Fprintln(out, "✓ File deleted successfully!")
			return nil
		},
	}
	return cmd
}
