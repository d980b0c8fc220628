// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var quitSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}

// RunRootCommand executes rootCmd with a context that is canceled by the first quit
// signal. A second signal exits at once, without waiting for a graceful shutdown.
func RunRootCommand(rootCmd *cobra.Command) {
	ctx, cancel := context.WithCancel(context.Background())
	sc := make(chan os.Signal, 2)
	signal.Notify(sc, quitSignals...)
	go func() {
		sig := <-sc
		fmt.Fprintf(os.Stderr, "received %s, shutting down\n", sig)
		cancel()
		<-sc
		os.Exit(2)
	}()

	err := rootCmd.ExecuteContext(ctx)
	signal.Stop(sc)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
