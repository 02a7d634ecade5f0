package cli

import (
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/wire"
)

// StatusCmd returns the status command: a colored overview of projects,
// active runs, and open escalations.
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show an overview of projects, runs, and escalations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			bold := color.New(color.Bold).SprintFunc()
			green := color.New(color.FgGreen).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()
			red := color.New(color.FgRed).SprintFunc()

			projects, err := wire.ProjectService().ListProjects(ctx, false)
			if err != nil {
				return err
			}

			fmt.Println(bold("Projects"))
			if len(projects) == 0 {
				fmt.Println("  none registered")
			} else {
				w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
				for _, p := range projects {
					status := p.Status
					switch p.Status {
					case "active":
						status = green(p.Status)
					case "failed":
						status = red(p.Status)
					}
					fmt.Fprintf(w, "  %s\t%s\tphase %d\n", p.Name, status, p.CurrentPhase)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			runs, err := wire.RunService().ListRuns(ctx, primary.RunFilters{Status: primary.RunStatusRunning})
			if err != nil {
				return err
			}

			fmt.Println()
			fmt.Println(bold("Active runs"))
			if len(runs) == 0 {
				fmt.Println("  none")
			} else {
				w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
				for _, r := range runs {
					fmt.Fprintf(w, "  %s\t%s\tphase %d\n", shortID(r.ID), r.ProjectName, r.CurrentPhase)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			escs, err := wire.EscalationService().ListEscalations(ctx, primary.EscalationFilters{
				Status: primary.EscalationStatusOpen,
			})
			if err != nil {
				return err
			}

			fmt.Println()
			fmt.Println(bold("Open escalations"))
			if len(escs) == 0 {
				fmt.Println("  none")
			} else {
				w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
				for _, e := range escs {
					sev := e.Severity
					if e.Severity == primary.SeverityHigh {
						sev = red(e.Severity)
					} else if e.Severity == primary.SeverityMedium {
						sev = yellow(e.Severity)
					}
					fmt.Fprintf(w, "  %s\t%s\t%s\n", e.ID, sev, truncate(e.Reason, 60))
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

// DoctorCmd returns the doctor command, which checks that the external
// tools the engine shells out to are available.
func DoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that required external tools are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			green := color.New(color.FgGreen).SprintFunc()
			red := color.New(color.FgRed).SprintFunc()

			ok := true
			for _, tool := range []string{"git", "tmux"} {
				path, err := exec.LookPath(tool)
				if err != nil {
					fmt.Printf("%s %s: not found in PATH\n", red("✗"), tool)
					ok = false
					continue
				}
				fmt.Printf("%s %s: %s\n", green("✓"), tool, path)
			}

			cfg := wire.GlobalConfig()
			fmt.Printf("  database: %s\n", cfg.DatabasePath)
			fmt.Printf("  worktrees: %s\n", cfg.WorktreeDir)
			fmt.Printf("  agent command: %s\n", cfg.AgentCommand)

			if !ok {
				return fmt.Errorf("missing required tools")
			}
			return nil
		},
	}
}
