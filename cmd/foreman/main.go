package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/foreman/internal/cli"
	"github.com/example/foreman/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "foreman",
		Short:   "foreman - phase orchestration for autonomous coding agents",
		Version: version.String(),
		Long: `foreman coordinates autonomous coding agents through a phased pipeline:
interview, spec, build, and review. Workers run in isolated git worktrees;
foreman plans phases, spawns agents, collects their callbacks, merges their
branches, and escalates anything it cannot resolve on its own.`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.ProjectCmd())
	rootCmd.AddCommand(cli.RunCmd())
	rootCmd.AddCommand(cli.HookCmd())
	rootCmd.AddCommand(cli.ReviewCmd())
	rootCmd.AddCommand(cli.EscalationCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.LogCmd())
	rootCmd.AddCommand(cli.ServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
