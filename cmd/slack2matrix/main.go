// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command slack2matrix migrates a Slack workspace export into a Matrix
// homeserver. Users, channels, private groups and direct chats are created
// first, then every room's history is replayed as its original authors.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "slack2matrix",
		Short:   "Migrate a Slack export into a Matrix homeserver",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Tag, Commit, BuildTime),
	}
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newExampleConfigCommand())
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
