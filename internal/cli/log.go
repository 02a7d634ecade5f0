package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/foreman/internal/wire"
)

// LogCmd returns the log command for tailing a project's activity trail.
func LogCmd() *cobra.Command {
	var project, typeFilter string
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Tail a project's activity log",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := wire.ActivityLog().Tail(NewContext(), project, limit, typeFilter)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No activity recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp, e.Type, e.Message)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project name (required)")
	cmd.Flags().StringVar(&typeFilter, "type", "", "filter by entry type")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
