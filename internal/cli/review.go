package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/wire"
)

// ReviewCmd returns the review command for inspecting and driving review
// chains. Reviewers normally report through hook review-decision; the
// decide subcommand is the human-operated equivalent.
func ReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and drive phase review chains",
	}

	cmd.AddCommand(reviewShowCmd())
	cmd.AddCommand(reviewDecideCmd())

	return cmd
}

func reviewShowCmd() *cobra.Command {
	var runID string
	var phase int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the review chain for a phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := wire.ReviewChains().Get(NewContext(), runID, phase)
			if err != nil {
				return err
			}

			fmt.Printf("Run:          %s\n", runID)
			fmt.Printf("Phase:        %d\n", phase)
			fmt.Printf("Chain:        %s\n", strings.Join(chain.Chain, " -> "))
			fmt.Printf("Status:       %s\n", chain.Status)
			if chain.CurrentIndex < len(chain.Chain) {
				fmt.Printf("Current role: %s\n", chain.Chain[chain.CurrentIndex])
			}
			if len(chain.Approvals) > 0 {
				fmt.Printf("Approvals:    %s\n", strings.Join(chain.Approvals, ", "))
			}
			if chain.FixAttempts > 0 {
				fmt.Printf("Fix attempts: %d\n", chain.FixAttempts)
			}
			if chain.LastInstruction != "" {
				fmt.Printf("Last fix instructions: %s\n", chain.LastInstruction)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "run ID")
	cmd.Flags().IntVar(&phase, "phase", 0, "phase number")
	_ = cmd.MarkFlagRequired("run")
	_ = cmd.MarkFlagRequired("phase")
	return cmd
}

func reviewDecideCmd() *cobra.Command {
	var runID, role, decision, comments, instructions, reason string
	var phase int

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Record a review decision by hand",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := wire.CallbackService().HandleReviewDecision(NewContext(), primary.ReviewDecisionRequest{
				RunID:            runID,
				PhaseNumber:      phase,
				Role:             role,
				Decision:         decision,
				Comments:         comments,
				FixInstructions:  instructions,
				EscalationReason: reason,
			})
			if err != nil {
				return err
			}

			fmt.Printf("✓ %s\n", resp.Message)
			if resp.ChainAdvanced {
				fmt.Printf("Next reviewer: %s\n", resp.NextReviewer)
			}
			if resp.FixerSpawned {
				fmt.Printf("Fixer spawned (attempt %d)\n", resp.FixAttempt)
			}
			if resp.EscalationID != "" {
				fmt.Printf("Escalation: %s\n", resp.EscalationID)
			}
			if resp.MergedBranch != "" {
				fmt.Printf("Merged: %s\n", resp.MergedBranch)
			}
			if resp.Advanced {
				fmt.Printf("Advanced to phase %d\n", resp.NextPhase)
			}
			if resp.PipelineComplete {
				fmt.Println("Pipeline complete")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "run ID")
	cmd.Flags().IntVar(&phase, "phase", 0, "phase number")
	cmd.Flags().StringVar(&role, "role", "", "reviewer role")
	cmd.Flags().StringVar(&decision, "decision", "", "approve, fix, or escalate")
	cmd.Flags().StringVar(&comments, "comments", "", "review comments")
	cmd.Flags().StringVar(&instructions, "instructions", "", "fix instructions (fix only)")
	cmd.Flags().StringVar(&reason, "reason", "", "escalation reason (escalate only)")
	_ = cmd.MarkFlagRequired("run")
	_ = cmd.MarkFlagRequired("phase")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}
