// Package secondary defines the secondary ports (driven adapters) for the
// engine. These are the interfaces through which the application drives
// external systems: persistence, git, the agent gateway, and the
// activity log.
package secondary

import (
	"context"
	"errors"
)

// ErrNotFound reports that a requested record does not exist. Adapters
// wrap it so callers can branch with errors.Is.
var ErrNotFound = errors.New("not found")

// ProjectRepository defines the secondary port for project persistence.
type ProjectRepository interface {
	// Create persists a new project.
	Create(ctx context.Context, project *ProjectRecord) error

	// GetByName retrieves a project by its name.
	GetByName(ctx context.Context, name string) (*ProjectRecord, error)

	// List retrieves projects, optionally including archived ones.
	List(ctx context.Context, includeArchived bool) ([]*ProjectRecord, error)

	// Update updates an existing project.
	Update(ctx context.Context, project *ProjectRecord) error

	// SetPhase persists the project's current phase number.
	SetPhase(ctx context.Context, name string, phase int) error

	// SetStatus updates the project status.
	SetStatus(ctx context.Context, name, status string) error

	// Archive marks a project archived.
	Archive(ctx context.Context, name string) error
}

// ProjectRecord represents a project as stored in persistence.
type ProjectRecord struct {
	Name         string
	RepoDir      string
	BaseBranch   string
	CurrentPhase int
	Status       string // active, completed, failed
	Archived     bool
	CreatedAt    string
	UpdatedAt    string
}

// RunRepository defines the secondary port for run persistence.
type RunRepository interface {
	// Create persists a new run.
	Create(ctx context.Context, run *RunRecord) error

	// GetByID retrieves a run by its ID.
	GetByID(ctx context.Context, id string) (*RunRecord, error)

	// GetActiveByProject retrieves the running run for a project.
	// Returns (nil, nil) when the project has no running run.
	GetActiveByProject(ctx context.Context, projectName string) (*RunRecord, error)

	// List retrieves runs matching the given filters.
	List(ctx context.Context, filters RunFilters) ([]*RunRecord, error)

	// SetPhase persists the run's current phase number.
	SetPhase(ctx context.Context, id string, phase int) error

	// SetStatus updates the run status, optionally stamping completed_at.
	SetStatus(ctx context.Context, id, status string, setCompleted bool) error
}

// RunRecord represents one pipeline execution as stored in persistence.
type RunRecord struct {
	ID           string
	ProjectName  string
	CurrentPhase int
	Status       string // running, completed, failed
	BaseBranch   string
	RepoDir      string
	CreatedAt    string
	UpdatedAt    string
	CompletedAt  string // Empty string means null
}

// RunFilters contains filter options for querying runs.
type RunFilters struct {
	ProjectName string
	Status      string
	Limit       int
}

// PhaseStateRepository defines the secondary port for phase barrier state.
// The (RunID, PhaseNumber) pair is the key; Init must be called once per
// phase before any worker reports.
type PhaseStateRepository interface {
	// Init persists a new barrier instance with its expected worker set.
	Init(ctx context.Context, state *PhaseStateRecord) error

	// Get retrieves a barrier with all recorded worker results.
	Get(ctx context.Context, runID string, phaseNumber int) (*PhaseStateRecord, error)

	// RecordResult stores one worker's terminal result. Recording an
	// already-present workerId must not overwrite the stored result.
	RecordResult(ctx context.Context, runID string, phaseNumber int, result WorkerResultRecord) error

	// SetPhaseBranch records the integration branch created by the merger.
	SetPhaseBranch(ctx context.Context, runID string, phaseNumber int, branch string) error
}

// PhaseStateRecord represents one phase barrier as stored in persistence.
type PhaseStateRecord struct {
	RunID       string
	PhaseNumber int
	PhaseName   string
	PhaseBranch string // Empty until merged
	BaseBranch  string
	RepoDir     string
	Expected    []string
	Results     []WorkerResultRecord
	CreatedAt   string
}

// WorkerResultRecord is one worker's terminal outcome within a phase.
type WorkerResultRecord struct {
	WorkerID   string
	Status     string // completed, failed
	Output     string
	Error      string
	ReportedAt string
}

// TaskRepository defines the secondary port for task persistence.
// Tasks are keyed by (RunID, PhaseNumber, TaskID).
type TaskRepository interface {
	// CreateBatch persists a phase's task list.
	CreateBatch(ctx context.Context, tasks []*TaskRecord) error

	// Get retrieves a task.
	Get(ctx context.Context, runID string, phaseNumber int, taskID string) (*TaskRecord, error)

	// ListByPhase retrieves all tasks for a (run, phase) pair.
	ListByPhase(ctx context.Context, runID string, phaseNumber int) ([]*TaskRecord, error)

	// UpdateStatus updates a task's status, optionally stamping completed_at.
	UpdateStatus(ctx context.Context, runID string, phaseNumber int, taskID, status string, setCompleted bool) error

	// AssignWorker records the session, branch, and worktree for a spawned task.
	AssignWorker(ctx context.Context, runID string, phaseNumber int, taskID, sessionID, branch, worktreePath string) error
}

// TaskRecord represents a task as stored in persistence.
type TaskRecord struct {
	RunID        string
	PhaseNumber  int
	TaskID       string
	Title        string
	DependsOn    []string
	Status       string // pending, ready, in_progress, done, failed
	SessionID    string // Empty string means null
	Branch       string // Empty string means null
	WorktreePath string // Empty string means null
	CreatedAt    string
	UpdatedAt    string
	CompletedAt  string // Empty string means null
}

// RetryStateRepository defines the secondary port for retry state.
// The full composite (RunID, PhaseNumber, TaskID) is the key.
type RetryStateRepository interface {
	// Get retrieves the retry state for a task, or nil when absent.
	Get(ctx context.Context, runID string, phaseNumber int, taskID string) (*RetryStateRecord, error)

	// Save upserts the retry state including its attempt list.
	Save(ctx context.Context, state *RetryStateRecord) error

	// Clear removes the retry state after an eventual success.
	Clear(ctx context.Context, runID string, phaseNumber int, taskID string) error
}

// RetryStateRecord represents retry state as stored in persistence.
type RetryStateRecord struct {
	RunID       string
	PhaseNumber int
	TaskID      string
	Status      string // active, exhausted
	MaxAttempts int
	BaseDelayMs int64
	MaxDelayMs  int64
	Attempts    []RetryAttemptRecord
}

// RetryAttemptRecord is one recorded execution attempt.
type RetryAttemptRecord struct {
	At      string
	Success bool
	Error   string
}

// EscalationRepository defines the secondary port for escalation persistence.
type EscalationRepository interface {
	// Create persists a new escalation.
	Create(ctx context.Context, escalation *EscalationRecord) error

	// GetByID retrieves an escalation by its ID.
	GetByID(ctx context.Context, id string) (*EscalationRecord, error)

	// List retrieves escalations matching the given filters.
	List(ctx context.Context, filters EscalationFilters) ([]*EscalationRecord, error)

	// Resolve resolves an escalation with resolution text.
	Resolve(ctx context.Context, id, resolution, resolvedBy string) error

	// ResolveByTask auto-resolves open escalations for a task and returns
	// the resolved escalation IDs.
	ResolveByTask(ctx context.Context, runID string, phaseNumber int, taskID, resolution string) ([]string, error)

	// GetNextID returns the next available escalation ID.
	GetNextID(ctx context.Context) (string, error)
}

// EscalationRecord represents an escalation as stored in persistence.
type EscalationRecord struct {
	ID           string
	RunID        string
	PhaseNumber  int
	RoleID       string // Empty string means null
	TaskID       string // Empty string means null
	Reason       string
	AttemptCount int
	MaxAttempts  int
	Severity     string // low, medium, high
	Status       string // open, resolved
	Resolution   string // Empty string means null
	ResolvedBy   string // Empty string means null
	CreatedAt    string
	ResolvedAt   string // Empty string means null
}

// EscalationFilters contains filter options for querying escalations.
type EscalationFilters struct {
	RunID  string
	TaskID string
	Status string
	Limit  int
}

// ReviewChainRepository defines the secondary port for review chain state.
type ReviewChainRepository interface {
	// Init persists a new chain for a (run, phase) pair.
	Init(ctx context.Context, chain *ReviewChainRecord) error

	// Get retrieves the chain for a (run, phase) pair.
	Get(ctx context.Context, runID string, phaseNumber int) (*ReviewChainRecord, error)

	// Update updates an existing chain.
	Update(ctx context.Context, chain *ReviewChainRecord) error
}

// ReviewChainRecord represents review chain state as stored in persistence.
type ReviewChainRecord struct {
	RunID           string
	PhaseNumber     int
	Chain           []string
	CurrentIndex    int
	Approvals       []string
	FixAttempts     int
	LastInstruction string // Empty string means null
	Status          string // awaiting, fixing, complete, escalated
	CreatedAt       string
	UpdatedAt       string
}

// Review chain status constants
const (
	ReviewChainAwaiting  = "awaiting"
	ReviewChainFixing    = "fixing"
	ReviewChainComplete  = "complete"
	ReviewChainEscalated = "escalated"
)

// JobRepository defines the secondary port backing the durable job
// scheduler. Pending jobs survive process restarts and are rearmed on
// startup.
type JobRepository interface {
	// Upsert persists a scheduled job, replacing any job with the same key.
	Upsert(ctx context.Context, job *ScheduledJobRecord) error

	// Delete removes a job by its key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// ListPending retrieves all scheduled jobs ordered by fire time.
	ListPending(ctx context.Context) ([]*ScheduledJobRecord, error)
}

// ScheduledJobRecord represents a pending scheduled job.
type ScheduledJobRecord struct {
	Key       string
	Kind      string
	RunID     string
	Payload   string // JSON, kind-specific
	FireAt    string
	CreatedAt string
}
