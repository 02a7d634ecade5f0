package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/ports/secondary"
)

// ProjectServiceImpl implements the ProjectService interface.
type ProjectServiceImpl struct {
	projectRepo secondary.ProjectRepository
	gateway     secondary.AgentGateway
	activityLog secondary.ActivityLog

	// interviewMu guards inflight so two concurrent StartInterview calls
	// for the same project spawn exactly one agent.
	interviewMu sync.Mutex
	inflight    map[string]*interviewSpawn
}

type interviewSpawn struct {
	done    chan struct{}
	session *primary.InterviewSession
	err     error
}

// NewProjectService creates a new ProjectService with injected dependencies.
func NewProjectService(projectRepo secondary.ProjectRepository, gateway secondary.AgentGateway, activityLog secondary.ActivityLog) *ProjectServiceImpl {
	return &ProjectServiceImpl{
		projectRepo: projectRepo,
		gateway:     gateway,
		activityLog: activityLog,
		inflight:    make(map[string]*interviewSpawn),
	}
}

// RegisterProject registers a repository with the engine.
func (s *ProjectServiceImpl) RegisterProject(ctx context.Context, req primary.RegisterProjectRequest) (*primary.Project, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("project name is required")
	}
	if req.RepoDir == "" {
		return nil, fmt.Errorf("repo directory is required")
	}
	baseBranch := req.BaseBranch
	if baseBranch == "" {
		baseBranch = "main"
	}

	record := &secondary.ProjectRecord{
		Name:       req.Name,
		RepoDir:    req.RepoDir,
		BaseBranch: baseBranch,
		Status:     "active",
	}
	if err := s.projectRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to register project: %w", err)
	}

	return s.GetProject(ctx, req.Name)
}

// GetProject retrieves a project by name.
func (s *ProjectServiceImpl) GetProject(ctx context.Context, name string) (*primary.Project, error) {
	record, err := s.projectRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return recordToProject(record), nil
}

// ListProjects lists projects, optionally including archived ones.
func (s *ProjectServiceImpl) ListProjects(ctx context.Context, includeArchived bool) ([]*primary.Project, error) {
	records, err := s.projectRepo.List(ctx, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	projects := make([]*primary.Project, len(records))
	for i, r := range records {
		projects[i] = recordToProject(r)
	}
	return projects, nil
}

// ArchiveProject archives a project; archived projects start no runs.
func (s *ProjectServiceImpl) ArchiveProject(ctx context.Context, name string) error {
	if err := s.projectRepo.Archive(ctx, name); err != nil {
		return fmt.Errorf("failed to archive project: %w", err)
	}
	return nil
}

// StartInterview spawns the interview agent for a project. A second call
// while the first spawn is in flight waits for it and receives the same
// session with Deduplicated set.
func (s *ProjectServiceImpl) StartInterview(ctx context.Context, name string) (*primary.InterviewSession, error) {
	project, err := s.projectRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if project.Archived {
		return nil, fmt.Errorf("project %s is archived", name)
	}

	s.interviewMu.Lock()
	if spawn, ok := s.inflight[name]; ok {
		s.interviewMu.Unlock()
		<-spawn.done
		if spawn.err != nil {
			return nil, spawn.err
		}
		dup := *spawn.session
		dup.Deduplicated = true
		return &dup, nil
	}
	spawn := &interviewSpawn{done: make(chan struct{})}
	s.inflight[name] = spawn
	s.interviewMu.Unlock()

	defer func() {
		close(spawn.done)
		s.interviewMu.Lock()
		delete(s.inflight, name)
		s.interviewMu.Unlock()
	}()

	handle, err := s.gateway.Spawn(ctx, secondary.SpawnRequest{
		Role:    secondary.RoleInterviewer,
		Project: name,
		WorkDir: project.RepoDir,
		Prompt:  interviewPrompt(name),
	})
	if err != nil {
		spawn.err = fmt.Errorf("failed to spawn interview agent: %w", err)
		return nil, spawn.err
	}

	spawn.session = &primary.InterviewSession{
		Project:   name,
		SessionID: handle.ID,
		Target:    handle.Target,
	}
	return spawn.session, nil
}

func recordToProject(r *secondary.ProjectRecord) *primary.Project {
	return &primary.Project{
		Name:         r.Name,
		RepoDir:      r.RepoDir,
		BaseBranch:   r.BaseBranch,
		CurrentPhase: r.CurrentPhase,
		Status:       r.Status,
		Archived:     r.Archived,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Ensure ProjectServiceImpl implements the interface
var _ primary.ProjectService = (*ProjectServiceImpl)(nil)
