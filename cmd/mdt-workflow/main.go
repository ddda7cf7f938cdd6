// Package main is the entry point of the MDT workflow manager.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kwlee0220/mdt-workflow-argo/cmd/mdt-workflow/commands"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := commands.New(os.Stdout).Execute(ctx); err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}
	return 0
}
