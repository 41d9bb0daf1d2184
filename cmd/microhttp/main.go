// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command microhttp serves the default echo route and probes running
// microhttp servers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := newApp(os.Stdout, os.Stderr)
	err := a.Execute(ctx, os.Args[1:]...)
	if err != nil {
		cancel()
		os.Exit(1)
	}
}
