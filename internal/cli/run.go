package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/wire"
)

// RunCmd returns the run command.
func RunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage pipeline runs",
		Long:  "Start, inspect, and fail pipeline runs.",
	}

	cmd.AddCommand(runStartCmd())
	cmd.AddCommand(runListCmd())
	cmd.AddCommand(runShowCmd())
	cmd.AddCommand(runFailCmd())

	return cmd
}

func runStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [project]",
		Short: "Start a pipeline run",
		Long: `Start a run at phase 1 of the project's pipeline definition.

Plans the phase's tasks, initializes the completion barrier, and spawns
workers for every task whose dependencies are satisfied. A project can
have at most one running run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := wire.RunService().StartRun(NewContext(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("✓ Run %s started at phase 1 (%s)\n", resp.Run.ID, resp.PhaseName)
			fmt.Printf("Expected workers: %s\n", strings.Join(resp.ExpectedWorkers, ", "))
			if len(resp.SpawnedWorkers) > 0 {
				fmt.Printf("Spawned now: %s\n", strings.Join(resp.SpawnedWorkers, ", "))
			}
			if blocked := len(resp.ExpectedWorkers) - len(resp.SpawnedWorkers); blocked > 0 {
				fmt.Printf("%d task(s) waiting on dependencies\n", blocked)
			}
			return nil
		},
	}
}

func runListCmd() *cobra.Command {
	var project, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := wire.RunService().ListRuns(NewContext(), primary.RunFilters{
				ProjectName: project,
				Status:      status,
				Limit:       limit,
			})
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROJECT\tPHASE\tSTATUS\tCREATED")
			fmt.Fprintln(w, "--\t-------\t-----\t------\t-------")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.ProjectName, r.CurrentPhase, r.Status, r.CreatedAt)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "filter by project")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (running, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum runs to list")
	return cmd
}

func runShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := wire.RunService().GetRun(NewContext(), args[0])
			if err != nil {
				return fmt.Errorf("run not found: %w", err)
			}

			fmt.Printf("Run: %s\n", run.ID)
			fmt.Printf("Project: %s\n", run.ProjectName)
			fmt.Printf("Phase: %d\n", run.CurrentPhase)
			fmt.Printf("Status: %s\n", run.Status)
			fmt.Printf("Base branch: %s\n", run.BaseBranch)
			fmt.Printf("Created: %s\n", run.CreatedAt)
			if run.CompletedAt != "" {
				fmt.Printf("Completed: %s\n", run.CompletedAt)
			}
			return nil
		},
	}
}

func runFailCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "fail [run-id]",
		Short: "Mark a run failed",
		Long: `Mark a running run as failed.

Pending retries and review chains for the run become inert; callbacks
from its agents are acknowledged and ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reason == "" {
				return fmt.Errorf("--reason is required")
			}
			if err := wire.RunService().FailRun(NewContext(), args[0], reason); err != nil {
				return err
			}
			fmt.Printf("✓ Run %s marked failed\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the run is being failed")
	return cmd
}
