package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/wire"
)

// ProjectCmd returns the project command.
func ProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage registered projects",
		Long:  "Register, list, archive, and interview projects.",
	}

	cmd.AddCommand(projectRegisterCmd())
	cmd.AddCommand(projectListCmd())
	cmd.AddCommand(projectShowCmd())
	cmd.AddCommand(projectArchiveCmd())
	cmd.AddCommand(projectInterviewCmd())

	return cmd
}

func projectRegisterCmd() *cobra.Command {
	var repoDir, baseBranch string

	cmd := &cobra.Command{
		Use:   "register [name]",
		Short: "Register a repository as a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := repoDir
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get working directory: %w", err)
				}
			}

			project, err := wire.ProjectService().RegisterProject(NewContext(), primary.RegisterProjectRequest{
				Name:       args[0],
				RepoDir:    dir,
				BaseBranch: baseBranch,
			})
			if err != nil {
				return err
			}
			fmt.Printf("✓ Registered project %s at %s\n", project.Name, project.RepoDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", "", "repository directory (default: cwd)")
	cmd.Flags().StringVar(&baseBranch, "base-branch", "", "integration branch (default: main)")
	return cmd
}

func projectListCmd() *cobra.Command {
	var includeArchived bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := wire.ProjectService().ListProjects(NewContext(), includeArchived)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Println("No projects registered.")
				fmt.Println()
				fmt.Println("Register your first project:")
				fmt.Println("  foreman init my-service")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPHASE\tSTATUS\tBASE\tREPO")
			fmt.Fprintln(w, "----\t-----\t------\t----\t----")
			for _, p := range projects {
				status := p.Status
				if p.Archived {
					status += " (archived)"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", p.Name, p.CurrentPhase, status, p.BaseBranch, p.RepoDir)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeArchived, "all", false, "include archived projects")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show project details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := wire.ProjectService().GetProject(NewContext(), args[0])
			if err != nil {
				return fmt.Errorf("project not found: %w", err)
			}

			fmt.Printf("Project: %s\n", project.Name)
			fmt.Printf("Repo: %s\n", project.RepoDir)
			fmt.Printf("Base branch: %s\n", project.BaseBranch)
			fmt.Printf("Current phase: %d\n", project.CurrentPhase)
			fmt.Printf("Status: %s\n", project.Status)
			if project.Archived {
				fmt.Println("Archived: yes")
			}
			fmt.Printf("Created: %s\n", project.CreatedAt)
			return nil
		},
	}
}

func projectArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive [name]",
		Short: "Archive a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.ProjectService().ArchiveProject(NewContext(), args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Archived project %s\n", args[0])
			return nil
		},
	}
}

func projectInterviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interview [name]",
		Short: "Start the interview agent for a project",
		Long: `Spawn the interview agent in a tmux session rooted in the project repo.

A second interview request while one is spawning reuses the in-flight
session instead of starting another agent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := wire.ProjectService().StartInterview(NewContext(), args[0])
			if err != nil {
				return err
			}
			if session.Deduplicated {
				fmt.Printf("Interview already starting; joining session %s\n", session.SessionID)
			} else {
				fmt.Printf("✓ Interview started in session %s\n", session.SessionID)
			}
			fmt.Printf("Attach with: tmux attach -t %s\n", session.SessionID)
			return nil
		},
	}
}
