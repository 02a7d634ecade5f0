package primary

import "context"

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunService defines the primary port for run lifecycle operations.
type RunService interface {
	// StartRun begins a pipeline run for a project at its first phase,
	// planning the phase's tasks and spawning workers for the ready set.
	StartRun(ctx context.Context, projectName string) (*StartRunResponse, error)

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns lists runs matching the filters.
	ListRuns(ctx context.Context, filters RunFilters) ([]*Run, error)

	// FailRun externally marks a run failed. Pending retries and review
	// chains for the run become inert.
	FailRun(ctx context.Context, runID, reason string) error
}

// Run represents one pipeline execution at the port boundary.
type Run struct {
	ID           string
	ProjectName  string
	CurrentPhase int
	Status       string
	BaseBranch   string
	RepoDir      string
	CreatedAt    string
	CompletedAt  string
}

// RunFilters contains filter options for listing runs.
type RunFilters struct {
	ProjectName string
	Status      string
	Limit       int
}

// StartRunResponse reports the run and the initially spawned workers.
type StartRunResponse struct {
	Run             *Run
	PhaseName       string
	SpawnedWorkers  []string
	ExpectedWorkers []string
}

// AdvanceResult reports the outcome of a phase advancement.
type AdvanceResult struct {
	Advanced         bool
	NextPhase        int
	NextPhaseName    string
	PipelineComplete bool
	SpawnedWorkers   []string
	Message          string
}
