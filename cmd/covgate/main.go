// CLAUDE:SUMMARY covgate binary: coverage gate server and offline ledger CLI (cobra commands run through fang).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := fang.Execute(ctx, newRootCmd(version)); err != nil {
		cancel()
		os.Exit(1)
	}
}
