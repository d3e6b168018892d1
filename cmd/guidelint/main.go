// Package main provides the entry point for the guidelint CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/guidelint/cmd/guidelint/commands"
	"github.com/Sumatoshi-tech/guidelint/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "guidelint",
		Short: "Guidelint - incremental guideline compliance checks",
		Long: `Guidelint checks source files against the project's written guidelines
with an LLM, caching verdicts so unchanged files are never re-analyzed.

Commands:
  check     Check files against the guidelines
  cache     Inspect or reset the verdict cache
  progress  Inspect or reset an interrupted run
  mcp       Serve checks to coding agents over MCP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewCacheCommand())
	rootCmd.AddCommand(commands.NewProgressCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	code := commands.ExitCode(err)
	if err != nil && commands.ShouldReport(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	os.Exit(code)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(os.Stdout, version.String())
		},
	}
}
