// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/toitlang/badge/cmd/badge/commands"
)

var version = "v0.1.0"

var buildDate = "unknown"
var buildMode = "development"

// Exit code used when the user interrupts a command.
const exitInterrupted = 130

func main() {
	isReleaseBuild := buildMode == "release"

	info := commands.Info{
		Date:    buildDate,
		Version: version,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx = commands.SetInfo(ctx, info)
	cmd := commands.BadgeCmd(info, isReleaseBuild)
	err := cmd.ExecuteContext(ctx)
	interrupted := ctx.Err() != nil
	stop()
	if err != nil {
		if interrupted {
			os.Exit(exitInterrupted)
		}
		os.Exit(1)
	}
}
