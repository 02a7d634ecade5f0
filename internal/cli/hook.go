package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/wire"
)

// HookCmd returns the hook command, the inbound callback surface agents
// invoke from their prompts. Every subcommand prints a JSON object with
// at least a "status" field; the agent reads it to know what happened.
func HookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Inbound agent callbacks",
		Long: `Handle completion and decision callbacks from agent sessions.

These commands are invoked by the spawned agents, not by operators.
Each prints a JSON response describing what the engine did.`,
	}

	cmd.AddCommand(hookTaskCompleteCmd())
	cmd.AddCommand(hookReviewDecisionCmd())
	cmd.AddCommand(hookFixCompleteCmd())

	return cmd
}

func hookTaskCompleteCmd() *cobra.Command {
	var runID, taskID, message, errMsg string
	var phase int
	var success bool

	cmd := &cobra.Command{
		Use:   "task-complete",
		Short: "Report a worker's terminal result",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := wire.CallbackService().HandleTaskCompletion(NewContext(), primary.TaskCompletionRequest{
				RunID:       runID,
				PhaseNumber: phase,
				TaskID:      taskID,
				Success:     success,
				Message:     message,
				Error:       errMsg,
			})
			if err != nil {
				return err
			}

			out := map[string]any{
				"status":  resp.Status,
				"message": resp.Message,
			}
			if resp.RetryInSeconds > 0 {
				out["retryInSeconds"] = resp.RetryInSeconds
			}
			if resp.AttemptCount > 0 {
				out["attemptCount"] = resp.AttemptCount
			}
			if resp.EscalationID != "" {
				out["escalationId"] = resp.EscalationID
			}
			if resp.PhaseBranch != "" {
				out["phaseBranch"] = resp.PhaseBranch
			}
			if len(resp.MergedBranches) > 0 {
				out["mergedBranches"] = resp.MergedBranches
			}
			if len(resp.SpawnedWorkers) > 0 {
				out["spawnedWorkers"] = resp.SpawnedWorkers
			}
			if resp.NextPhase > 0 {
				out["nextPhase"] = resp.NextPhase
			}
			if resp.PipelineComplete {
				out["pipelineComplete"] = true
			}
			return printJSON(out)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "run ID")
	cmd.Flags().IntVar(&phase, "phase", 0, "phase number")
	cmd.Flags().StringVar(&taskID, "task", "", "task ID")
	cmd.Flags().BoolVar(&success, "success", false, "the task completed successfully")
	cmd.Flags().StringVar(&message, "message", "", "completion summary")
	cmd.Flags().StringVar(&errMsg, "error", "", "failure description")
	_ = cmd.MarkFlagRequired("run")
	_ = cmd.MarkFlagRequired("phase")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func hookReviewDecisionCmd() *cobra.Command {
	var runID, role, decision, comments, instructions, reason string
	var phase int

	cmd := &cobra.Command{
		Use:   "review-decision",
		Short: "Report a reviewer's decision",
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

			out := map[string]any{"message": resp.Message}
			if resp.ChainAdvanced {
				out["nextReviewer"] = resp.NextReviewer
			}
			if resp.FixerSpawned {
				out["fixerSpawned"] = true
				out["fixAttempt"] = resp.FixAttempt
			}
			if resp.EscalationID != "" {
				out["escalationId"] = resp.EscalationID
				out["forced"] = resp.ForcedEscalation
			}
			if resp.MergedBranch != "" {
				out["mergedBranch"] = resp.MergedBranch
			}
			if resp.Advanced {
				out["nextPhase"] = resp.NextPhase
			}
			if resp.PipelineComplete {
				out["pipelineComplete"] = true
			}
			return printJSON(out)
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

func hookFixCompleteCmd() *cobra.Command {
	var runID, status, summary, errMsg string
	var phase int

	cmd := &cobra.Command{
		Use:   "fix-complete",
		Short: "Report a fixer's result",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := wire.CallbackService().HandleFixCompletion(NewContext(), primary.FixCompletionRequest{
				RunID:       runID,
				PhaseNumber: phase,
				Status:      status,
				Summary:     summary,
				Error:       errMsg,
			})
			if err != nil {
				return err
			}

			out := map[string]any{"message": resp.Message}
			if resp.ReviewerSpawned {
				out["reviewer"] = resp.Reviewer
			}
			if resp.FixerRespawned {
				out["fixerRespawned"] = true
				out["fixAttempt"] = resp.FixAttempt
			}
			if resp.EscalationID != "" {
				out["escalationId"] = resp.EscalationID
			}
			return printJSON(out)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "run ID")
	cmd.Flags().IntVar(&phase, "phase", 0, "phase number")
	cmd.Flags().StringVar(&status, "status", "", "completed or failed")
	cmd.Flags().StringVar(&summary, "summary", "", "what was changed")
	cmd.Flags().StringVar(&errMsg, "error", "", "why the fix failed")
	_ = cmd.MarkFlagRequired("run")
	_ = cmd.MarkFlagRequired("phase")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
