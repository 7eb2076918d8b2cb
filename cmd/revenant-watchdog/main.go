// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/revenant/lib/process"
	"github.com/bureau-foundation/revenant/lib/version"
	"github.com/bureau-foundation/revenant/vigil"
)

func main() {
	for _, argument := range os.Args[1:] {
		if argument == "--version" {
			fmt.Printf("revenant-watchdog %s\n", version.Info())
			return
		}
	}

	stage := os.Getenv(vigil.StageEnv)
	if stage == "" {
		fmt.Fprintf(os.Stderr, "error: %s is not set; revenant-watchdog is staged by revenant-daemon, not invoked directly\n", vigil.StageEnv)
		os.Exit(2)
	}

	logger := process.NewLogger()
	if err := vigil.RunHelper(stage, os.Args[1:], logger); err != nil {
		process.Fatal(err)
	}
}
