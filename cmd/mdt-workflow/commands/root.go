// Package commands implements the mdt-workflow command line.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// CLI holds the root command and its output stream.
type CLI struct {
	rootCmd *cobra.Command
	out     io.Writer
}

// New creates the command tree writing command output to out.
func New(out io.Writer) *CLI {
	rootCmd := &cobra.Command{
		Use:           "mdt-workflow",
		Short:         "Manage MDT task-graph workflows on Argo Workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	c := &CLI{rootCmd: rootCmd, out: out}
	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newScriptCmd())
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}
