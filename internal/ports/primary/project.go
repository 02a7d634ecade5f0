package primary

import "context"

// ProjectService defines the primary port for project registration and
// lifecycle.
type ProjectService interface {
	// RegisterProject registers a repository with the engine.
	RegisterProject(ctx context.Context, req RegisterProjectRequest) (*Project, error)

	// GetProject retrieves a project by name.
	GetProject(ctx context.Context, name string) (*Project, error)

	// ListProjects lists projects, optionally including archived ones.
	ListProjects(ctx context.Context, includeArchived bool) ([]*Project, error)

	// ArchiveProject archives a project; archived projects start no runs.
	ArchiveProject(ctx context.Context, name string) error

	// StartInterview spawns the interview agent for a project. Concurrent
	// requests for the same project are deduplicated: the second caller
	// receives the session of the first instead of a double spawn.
	StartInterview(ctx context.Context, name string) (*InterviewSession, error)
}

// RegisterProjectRequest carries the data to register a project.
type RegisterProjectRequest struct {
	Name       string
	RepoDir    string
	BaseBranch string
}

// Project represents a project at the port boundary.
type Project struct {
	Name         string
	RepoDir      string
	BaseBranch   string
	CurrentPhase int
	Status       string
	Archived     bool
	CreatedAt    string
	UpdatedAt    string
}

// InterviewSession identifies a spawned interview agent session.
type InterviewSession struct {
	Project   string
	SessionID string
	Target    string
	// Deduplicated is true when an in-flight spawn was reused.
	Deduplicated bool
}
