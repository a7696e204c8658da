// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"dfttest/cmd"
	"dfttest/internal/log"
	"dfttest/pkg/build"
)

// main wires build information and signal handling around the CLI. An
// interrupt cancels the running pass; frames already written stay valid.
func main() {
	if err := build.Initialize(); err != nil {
		log.Debugf("build: %v, using module build info", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
