package secondary

import "context"

// ActivityEntry is one append-only activity log record. Entries are
// persisted as one JSON object per line and are the durable audit trail
// the UI polls; they are never rewritten.
type ActivityEntry struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Actor     string         `json:"actor,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Activity entry type constants. Every failure path writes one of these
// before returning.
const (
	ActivityWorkerCompleted = "worker-completed"
	ActivityWorkerFailed    = "worker-failed"
	ActivityRetryScheduled  = "retry-scheduled"
	ActivityRetryExhausted  = "retry-exhausted"
	ActivityRetryDropped    = "retry-dropped"
	ActivityEscalated       = "escalated"
	ActivityEscalationAuto  = "escalation-auto-resolved"
	ActivityPhaseComplete   = "phase-complete"
	ActivityPhaseMerged     = "phase-merged"
	ActivityMergeConflict   = "merge-conflict"
	ActivityMergeFailed     = "merge-failed"
	ActivityReviewDecision  = "review-decision"
	ActivityReviewerSpawned = "reviewer-spawned"
	ActivityFixerSpawned    = "fixer-spawned"
	ActivitySpawnFailed     = "spawn-failed"
	ActivityPhaseAdvanced   = "phase-advanced"
	ActivityPipelineDone    = "pipeline-complete"
	ActivityRunStarted      = "run-started"
	ActivityRunFailed       = "run-failed"
)

// ActivityLog defines the secondary port for the per-project audit trail.
type ActivityLog interface {
	// Append writes one entry to the project's log.
	Append(ctx context.Context, project string, entry ActivityEntry) error

	// Tail returns up to limit most recent entries, newest last,
	// optionally filtered by type.
	Tail(ctx context.Context, project string, limit int, typeFilter string) ([]ActivityEntry, error)
}
