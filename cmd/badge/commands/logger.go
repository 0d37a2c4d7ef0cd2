// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// logger traces the serial protocol. It is silent unless --verbose is given.
var logger = zerolog.Nop()

func configureLogger(w io.Writer, verbose bool) {
	if !verbose {
		logger = zerolog.Nop()
		return
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.StampMilli,
	}
	logger = zerolog.New(output).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
