package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/foreman/internal/config"
	"github.com/example/foreman/internal/pipeline"
	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/wire"
)

// InitCmd returns the init command.
func InitCmd() *cobra.Command {
	var baseBranch string

	cmd := &cobra.Command{
		Use:   "init [project-name]",
		Short: "Initialize a repository for foreman",
		Long: `Scaffold .foreman/ in the current repository and register the project.

Writes .foreman/config.json and a pipeline.yaml skeleton, then registers
the project with the engine.

Example:
  foreman init my-service --base-branch main`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			repoDir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			if _, err := config.LoadProject(repoDir); err == nil {
				return fmt.Errorf("%s already contains a %s/config.json", repoDir, config.Dir)
			}

			if err := config.SaveProject(repoDir, &config.ProjectConfig{
				Version:    "1",
				Project:    name,
				BaseBranch: baseBranch,
			}); err != nil {
				return err
			}

			pipelinePath := filepath.Join(repoDir, pipeline.FileName)
			if _, err := os.Stat(pipelinePath); os.IsNotExist(err) {
				if err := os.WriteFile(pipelinePath, []byte(pipeline.DefaultDefinition), 0644); err != nil {
					return fmt.Errorf("failed to write pipeline skeleton: %w", err)
				}
				fmt.Printf("✓ Wrote %s\n", pipeline.FileName)
			}

			project, err := wire.ProjectService().RegisterProject(NewContext(), primary.RegisterProjectRequest{
				Name:       name,
				RepoDir:    repoDir,
				BaseBranch: baseBranch,
			})
			if err != nil {
				return err
			}

			fmt.Printf("✓ Registered project %s (base: %s)\n", project.Name, project.BaseBranch)
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Printf("  edit %s to define your phases\n", pipeline.FileName)
			fmt.Printf("  foreman project interview %s\n", name)
			fmt.Printf("  foreman run start %s\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseBranch, "base-branch", "main", "integration branch for merged phases")
	return cmd
}
