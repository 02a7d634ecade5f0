package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/ports/secondary"
)

// RunServiceImpl implements the RunService interface.
type RunServiceImpl struct {
	runRepo     secondary.RunRepository
	projectRepo secondary.ProjectRepository
	advancer    *PhaseAdvancer
	spawner     *WorkerScheduler
	activityLog secondary.ActivityLog
	loadDef     PipelineLoader
}

// NewRunService creates a new RunService with injected dependencies.
func NewRunService(runRepo secondary.RunRepository, projectRepo secondary.ProjectRepository, advancer *PhaseAdvancer, spawner *WorkerScheduler, activityLog secondary.ActivityLog, loadDef PipelineLoader) *RunServiceImpl {
	return &RunServiceImpl{
		runRepo:     runRepo,
		projectRepo: projectRepo,
		advancer:    advancer,
		spawner:     spawner,
		activityLog: activityLog,
		loadDef:     loadDef,
	}
}

// StartRun begins a pipeline run for a project at phase 1. One active run
// per project; a second StartRun while one is running is rejected.
func (s *RunServiceImpl) StartRun(ctx context.Context, projectName string) (*primary.StartRunResponse, error) {
	project, err := s.projectRepo.GetByName(ctx, projectName)
	if err != nil {
		return nil, err
	}
	if project.Archived {
		return nil, fmt.Errorf("project %s is archived", projectName)
	}

	active, err := s.runRepo.GetActiveByProject(ctx, projectName)
	if err != nil {
		return nil, fmt.Errorf("failed to check active runs: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("project %s already has active run %s", projectName, active.ID)
	}

	def, err := s.loadDef(project.RepoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	firstPhase, err := def.Phase(1)
	if err != nil {
		return nil, err
	}

	run := &secondary.RunRecord{
		ID:           uuid.New().String(),
		ProjectName:  projectName,
		CurrentPhase: 1,
		Status:       primary.RunStatusRunning,
		BaseBranch:   project.BaseBranch,
		RepoDir:      project.RepoDir,
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if err := s.advancer.StartPhase(ctx, run, 1, firstPhase); err != nil {
		return nil, err
	}
	if err := s.projectRepo.SetPhase(ctx, projectName, 1); err != nil {
		return nil, fmt.Errorf("failed to set project phase: %w", err)
	}

	spawned, err := s.spawner.SpawnReady(ctx, run, 1, firstPhase.MaxWorkers)
	if err != nil {
		return nil, err
	}

	_ = s.activityLog.Append(ctx, projectName, secondary.ActivityEntry{
		Type:    secondary.ActivityRunStarted,
		Message: fmt.Sprintf("run %s started at phase 1 (%s)", run.ID, firstPhase.Name),
		Fields: map[string]any{
			"runId":   run.ID,
			"spawned": spawned,
		},
	})

	expected := make([]string, len(firstPhase.Tasks))
	for i, t := range firstPhase.Tasks {
		expected[i] = t.ID
	}

	created, err := s.runRepo.GetByID(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return &primary.StartRunResponse{
		Run:             recordToRun(created),
		PhaseName:       firstPhase.Name,
		SpawnedWorkers:  spawned,
		ExpectedWorkers: expected,
	}, nil
}

// GetRun retrieves a run by ID.
func (s *RunServiceImpl) GetRun(ctx context.Context, runID string) (*primary.Run, error) {
	record, err := s.runRepo.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	return recordToRun(record), nil
}

// ListRuns lists runs matching the filters.
func (s *RunServiceImpl) ListRuns(ctx context.Context, filters primary.RunFilters) ([]*primary.Run, error) {
	records, err := s.runRepo.List(ctx, secondary.RunFilters{
		ProjectName: filters.ProjectName,
		Status:      filters.Status,
		Limit:       filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs := make([]*primary.Run, len(records))
	for i, r := range records {
		runs[i] = recordToRun(r)
	}
	return runs, nil
}

// FailRun externally marks a run failed. Callbacks and fired retry
// timers for a non-running run are ignored, so everything pending
// becomes inert.
func (s *RunServiceImpl) FailRun(ctx context.Context, runID, reason string) error {
	run, err := s.runRepo.GetByID(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != primary.RunStatusRunning {
		return fmt.Errorf("run %s is not running (status: %s)", runID, run.Status)
	}
	if err := s.runRepo.SetStatus(ctx, runID, primary.RunStatusFailed, true); err != nil {
		return fmt.Errorf("failed to fail run: %w", err)
	}
	if err := s.projectRepo.SetStatus(ctx, run.ProjectName, "failed"); err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}

	_ = s.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityRunFailed,
		Message: fmt.Sprintf("run %s marked failed: %s", runID, reason),
		Fields:  map[string]any{"runId": runID, "reason": reason},
	})
	return nil
}

func recordToRun(r *secondary.RunRecord) *primary.Run {
	return &primary.Run{
		ID:           r.ID,
		ProjectName:  r.ProjectName,
		CurrentPhase: r.CurrentPhase,
		Status:       r.Status,
		BaseBranch:   r.BaseBranch,
		RepoDir:      r.RepoDir,
		CreatedAt:    r.CreatedAt,
		CompletedAt:  r.CompletedAt,
	}
}

// Ensure RunServiceImpl implements the interface
var _ primary.RunService = (*RunServiceImpl)(nil)
