package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/wire"
)

// EscalationCmd returns the escalation command with its subcommands.
func EscalationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "escalation",
		Aliases: []string{"esc"},
		Short:   "Inspect and resolve escalations",
	}

	cmd.AddCommand(escalationListCmd())
	cmd.AddCommand(escalationShowCmd())
	cmd.AddCommand(escalationResolveCmd())

	return cmd
}

func escalationListCmd() *cobra.Command {
	var runID, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List escalations",
		RunE: func(cmd *cobra.Command, args []string) error {
			escs, err := wire.EscalationService().ListEscalations(NewContext(), primary.EscalationFilters{
				RunID:  runID,
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			if len(escs) == 0 {
				fmt.Println("No escalations found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tRUN\tPHASE\tSEVERITY\tSTATUS\tREASON")
			for _, e := range escs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					e.ID, shortID(e.RunID), e.PhaseNumber, e.Severity, e.Status, truncate(e.Reason, 60))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "filter by run ID")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (open, resolved)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum escalations to list")
	return cmd
}

func escalationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <escalation-id>",
		Short: "Show escalation details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := wire.EscalationService().GetEscalation(NewContext(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("ID:        %s\n", e.ID)
			fmt.Printf("Run:       %s\n", e.RunID)
			fmt.Printf("Phase:     %d\n", e.PhaseNumber)
			if e.TaskID != "" {
				fmt.Printf("Task:      %s\n", e.TaskID)
			}
			if e.RoleID != "" {
				fmt.Printf("Role:      %s\n", e.RoleID)
			}
			fmt.Printf("Severity:  %s\n", e.Severity)
			fmt.Printf("Status:    %s\n", e.Status)
			if e.MaxAttempts > 0 {
				fmt.Printf("Attempts:  %d/%d\n", e.AttemptCount, e.MaxAttempts)
			}
			fmt.Printf("Created:   %s\n", e.CreatedAt)
			fmt.Printf("Reason:    %s\n", e.Reason)
			if e.Status == primary.EscalationStatusResolved {
				fmt.Printf("Resolved:  %s by %s\n", e.ResolvedAt, e.ResolvedBy)
				fmt.Printf("Resolution: %s\n", e.Resolution)
			}
			return nil
		},
	}
}

func escalationResolveCmd() *cobra.Command {
	var resolution, resolvedBy string

	cmd := &cobra.Command{
		Use:   "resolve <escalation-id>",
		Short: "Record a human resolution for an open escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := wire.EscalationService().ResolveEscalation(NewContext(), primary.ResolveEscalationRequest{
				EscalationID: args[0],
				Resolution:   resolution,
				ResolvedBy:   resolvedBy,
			})
			if err != nil {
				return err
			}

			fmt.Printf("✓ Escalation %s resolved\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&resolution, "resolution", "", "what was decided or done (required)")
	cmd.Flags().StringVar(&resolvedBy, "as", "", "who resolved it (defaults to human)")
	_ = cmd.MarkFlagRequired("resolution")
	return cmd
}
