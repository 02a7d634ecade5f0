// Package primary defines the primary ports (driving interfaces) of the
// engine: the operations the CLI and inbound agent callbacks invoke.
package primary

import "context"

// Task completion response statuses.
const (
	StatusRetryScheduled        = "retry-scheduled"
	StatusEscalated             = "escalated"
	StatusContinue              = "continue"
	StatusPhaseAdvanced         = "phase-advanced"
	StatusPhaseMerged           = "phase-merged"
	StatusPhaseMergedAdvanced   = "phase-merged-and-advanced"
	StatusPhaseConflict         = "phase-conflict"
	StatusPhaseMergeFailed      = "phase-merge-failed"
	StatusPhaseCompleteFailures = "phase-complete-with-failures"
)

// TaskCompletionRequest is the inbound completion callback from the agent
// runtime for one worker.
type TaskCompletionRequest struct {
	TaskID      string
	Success     bool
	Message     string
	RunID       string
	PhaseNumber int
	Error       string
}

// TaskCompletionResponse reports what the engine did with the completion.
type TaskCompletionResponse struct {
	Status           string
	Message          string
	RetryInSeconds   int
	AttemptCount     int
	EscalationID     string
	PhaseBranch      string
	MergedBranches   []string
	SpawnedWorkers   []string
	NextPhase        int
	PipelineComplete bool
}

// ReviewDecisionRequest is the inbound decision callback from a reviewer.
type ReviewDecisionRequest struct {
	RunID            string
	PhaseNumber      int
	Role             string
	Decision         string // approve, fix, escalate
	Comments         string
	FixInstructions  string
	EscalationReason string
}

// ReviewDecisionResponse reports the chain transition that resulted.
type ReviewDecisionResponse struct {
	ChainAdvanced    bool
	NextReviewer     string
	FixerSpawned     bool
	FixAttempt       int
	ForcedEscalation bool
	EscalationID     string
	MergedBranch     string
	Advanced         bool
	NextPhase        int
	PipelineComplete bool
	Message          string
}

// FixCompletionRequest is the inbound completion callback from a fixer.
type FixCompletionRequest struct {
	RunID       string
	PhaseNumber int
	Status      string // completed, failed
	Summary     string
	Error       string
}

// FixCompletionResponse reports whether re-review started or the failure
// escalated.
type FixCompletionResponse struct {
	ReviewerSpawned bool
	Reviewer        string
	FixerRespawned  bool
	FixAttempt      int
	EscalationID    string
	Message         string
}

// CallbackService is the primary port for the engine's inbound event
// surface. Handlers are idempotent against duplicate callbacks and may
// run concurrently for different workers of the same phase.
type CallbackService interface {
	// HandleTaskCompletion processes a worker's terminal report: retry or
	// escalate failures, record the barrier entry, and on a satisfied
	// barrier drive merge, review, and advancement.
	HandleTaskCompletion(ctx context.Context, req TaskCompletionRequest) (*TaskCompletionResponse, error)

	// HandleReviewDecision advances the review chain with one decision.
	// Malformed decisions are client errors, rejected synchronously.
	HandleReviewDecision(ctx context.Context, req ReviewDecisionRequest) (*ReviewDecisionResponse, error)

	// HandleFixCompletion resumes the chain after a fixer finishes, or
	// escalates after repeated fix failures.
	HandleFixCompletion(ctx context.Context, req FixCompletionRequest) (*FixCompletionResponse, error)
}
