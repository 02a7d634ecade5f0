package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/foreman/internal/core/taskgraph"
	"github.com/example/foreman/internal/pipeline"
	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/ports/secondary"
)

// PipelineLoader resolves a repo's pipeline definition. Injected so the
// services can be tested without files on disk.
type PipelineLoader func(repoDir string) (*pipeline.Definition, error)

// PhaseAdvancer moves a run to its next phase: persists the new phase on
// run and project, plans the next phase's tasks, initializes the barrier,
// and spawns the ready workers. On the last phase it completes the run.
type PhaseAdvancer struct {
	projectRepo secondary.ProjectRepository
	runRepo     secondary.RunRepository
	taskRepo    secondary.TaskRepository
	phaseRepo   secondary.PhaseStateRepository
	spawner     *WorkerScheduler
	activityLog secondary.ActivityLog
	loadDef     PipelineLoader
}

// NewPhaseAdvancer creates a new PhaseAdvancer with injected dependencies.
func NewPhaseAdvancer(projectRepo secondary.ProjectRepository, runRepo secondary.RunRepository, taskRepo secondary.TaskRepository, phaseRepo secondary.PhaseStateRepository, spawner *WorkerScheduler, activityLog secondary.ActivityLog, loadDef PipelineLoader) *PhaseAdvancer {
	return &PhaseAdvancer{
		projectRepo: projectRepo,
		runRepo:     runRepo,
		taskRepo:    taskRepo,
		phaseRepo:   phaseRepo,
		spawner:     spawner,
		activityLog: activityLog,
		loadDef:     loadDef,
	}
}

// Advance transitions the run past its current phase. Returns
// Advanced=false with PipelineComplete=true when the current phase was
// the last one. A run whose project mapping is gone is not an error;
// auto-advance is skipped.
func (a *PhaseAdvancer) Advance(ctx context.Context, run *secondary.RunRecord) (*primary.AdvanceResult, error) {
	if _, err := a.projectRepo.GetByName(ctx, run.ProjectName); err != nil {
		if errors.Is(err, secondary.ErrNotFound) {
			return &primary.AdvanceResult{
				Advanced: false,
				Message:  fmt.Sprintf("no project mapping for run %s; auto-advance skipped", run.ID),
			}, nil
		}
		return nil, fmt.Errorf("failed to look up project: %w", err)
	}

	def, err := a.loadDef(run.RepoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}

	if def.IsLast(run.CurrentPhase) {
		return a.completePipeline(ctx, run)
	}

	next := run.CurrentPhase + 1
	nextPhase, err := def.Phase(next)
	if err != nil {
		return nil, err
	}

	if err := a.StartPhase(ctx, run, next, nextPhase); err != nil {
		return nil, err
	}
	if err := a.runRepo.SetPhase(ctx, run.ID, next); err != nil {
		return nil, fmt.Errorf("failed to advance run phase: %w", err)
	}
	if err := a.projectRepo.SetPhase(ctx, run.ProjectName, next); err != nil {
		return nil, fmt.Errorf("failed to advance project phase: %w", err)
	}
	run.CurrentPhase = next

	spawned, err := a.spawner.SpawnReady(ctx, run, next, nextPhase.MaxWorkers)
	if err != nil {
		return nil, err
	}

	_ = a.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityPhaseAdvanced,
		Message: fmt.Sprintf("advanced to phase %d (%s), spawned %d workers", next, nextPhase.Name, len(spawned)),
		Fields: map[string]any{
			"runId":   run.ID,
			"phase":   next,
			"spawned": spawned,
		},
	})

	return &primary.AdvanceResult{
		Advanced:       true,
		NextPhase:      next,
		NextPhaseName:  nextPhase.Name,
		SpawnedWorkers: spawned,
		Message:        fmt.Sprintf("phase %d (%s) started", next, nextPhase.Name),
	}, nil
}

// StartPhase plans a phase's tasks and initializes its barrier. The
// expected worker set is the full task list; dependency gating delays
// spawning, not barrier membership.
func (a *PhaseAdvancer) StartPhase(ctx context.Context, run *secondary.RunRecord, phaseNumber int, def *pipeline.Phase) error {
	tasks := make([]*secondary.TaskRecord, len(def.Tasks))
	expected := make([]string, len(def.Tasks))
	for i, t := range def.Tasks {
		tasks[i] = &secondary.TaskRecord{
			RunID:       run.ID,
			PhaseNumber: phaseNumber,
			TaskID:      t.ID,
			Title:       t.Title,
			DependsOn:   t.DependsOn,
			Status:      string(taskgraph.StatusPending),
		}
		expected[i] = t.ID
	}
	if err := a.taskRepo.CreateBatch(ctx, tasks); err != nil {
		return fmt.Errorf("failed to plan phase tasks: %w", err)
	}

	state := &secondary.PhaseStateRecord{
		RunID:       run.ID,
		PhaseNumber: phaseNumber,
		PhaseName:   def.Name,
		BaseBranch:  run.BaseBranch,
		RepoDir:     run.RepoDir,
		Expected:    expected,
	}
	if err := a.phaseRepo.Init(ctx, state); err != nil {
		return fmt.Errorf("failed to initialize phase barrier: %w", err)
	}
	return nil
}

func (a *PhaseAdvancer) completePipeline(ctx context.Context, run *secondary.RunRecord) (*primary.AdvanceResult, error) {
	if err := a.runRepo.SetStatus(ctx, run.ID, primary.RunStatusCompleted, true); err != nil {
		return nil, fmt.Errorf("failed to complete run: %w", err)
	}
	if err := a.projectRepo.SetStatus(ctx, run.ProjectName, "completed"); err != nil {
		return nil, fmt.Errorf("failed to complete project: %w", err)
	}

	_ = a.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityPipelineDone,
		Message: fmt.Sprintf("run %s completed all phases", run.ID),
		Fields:  map[string]any{"runId": run.ID},
	})

	return &primary.AdvanceResult{
		PipelineComplete: true,
		Message:          "pipeline complete",
	}, nil
}
