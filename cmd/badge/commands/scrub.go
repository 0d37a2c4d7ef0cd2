// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import "strings"

const promptMarker = ">>>"

// Scrub recovers the output lines of a command from a raw response by removing
// prompts, the echoed command and blank lines.
//
// Output that itself starts with the prompt marker can't be told apart from a
// prompt and is mangled.
func Scrub(raw string, command string) []string {
	echo := strings.TrimSpace(command)
	var res []string
	for _, line := range strings.Split(raw, "\n") {
		clean := strings.TrimSpace(line)
		for strings.HasPrefix(clean, promptMarker) {
			clean = strings.TrimSpace(strings.TrimPrefix(clean, promptMarker))
		}
		if clean == "" || clean == echo {
			continue
		}
		res = append(res, clean)
	}
	return res
}
