package app

import (
	"context"
	"fmt"

	"github.com/example/foreman/internal/core/taskgraph"
	"github.com/example/foreman/internal/core/worktree"
	"github.com/example/foreman/internal/locks"
	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/ports/secondary"
)

// WorkerScheduler spawns workers for ready tasks: one worktree, one
// branch, one agent session per task. The task ID doubles as the worker
// ID everywhere downstream.
type WorkerScheduler struct {
	taskRepo       secondary.TaskRepository
	git            secondary.GitClient
	gateway        secondary.AgentGateway
	escalationRepo secondary.EscalationRepository
	activityLog    secondary.ActivityLog
	locks          *locks.Manager
	worktreeDir    string
}

// NewWorkerScheduler creates a new WorkerScheduler with injected dependencies.
func NewWorkerScheduler(taskRepo secondary.TaskRepository, git secondary.GitClient, gateway secondary.AgentGateway, escalationRepo secondary.EscalationRepository, activityLog secondary.ActivityLog, lockMgr *locks.Manager, worktreeDir string) *WorkerScheduler {
	return &WorkerScheduler{
		taskRepo:       taskRepo,
		git:            git,
		gateway:        gateway,
		escalationRepo: escalationRepo,
		activityLog:    activityLog,
		locks:          lockMgr,
		worktreeDir:    worktreeDir,
	}
}

// SpawnReady spawns workers for every ready task of the phase, up to the
// concurrency bound. maxWorkers <= 0 means unbounded. A task that fails
// to spawn is escalated, not retried; other tasks still proceed.
func (s *WorkerScheduler) SpawnReady(ctx context.Context, run *secondary.RunRecord, phaseNumber, maxWorkers int) ([]string, error) {
	records, err := s.taskRepo.ListByPhase(ctx, run.ID, phaseNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list phase tasks: %w", err)
	}

	graph, err := taskgraph.New(recordsToGraphTasks(records))
	if err != nil {
		return nil, fmt.Errorf("invalid task graph: %w", err)
	}

	budget := -1
	if maxWorkers > 0 {
		inProgress := 0
		for _, r := range records {
			if r.Status == string(taskgraph.StatusInProgress) {
				inProgress++
			}
		}
		budget = maxWorkers - inProgress
		if budget <= 0 {
			return nil, nil
		}
	}

	var spawned []string
	for _, task := range graph.Ready() {
		if budget == 0 {
			break
		}
		if err := s.spawnWorker(ctx, run, phaseNumber, task.ID, task.Title); err != nil {
			s.escalateSpawnFailure(ctx, run, phaseNumber, task.ID, err)
			continue
		}
		spawned = append(spawned, task.ID)
		if budget > 0 {
			budget--
		}
	}
	return spawned, nil
}

// Respawn restarts the agent for a task that already has its worktree,
// reusing the existing branch. Used by the retry path.
func (s *WorkerScheduler) Respawn(ctx context.Context, run *secondary.RunRecord, phaseNumber int, taskID string) error {
	record, err := s.taskRepo.Get(ctx, run.ID, phaseNumber, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}
	if record.WorktreePath == "" || record.Branch == "" {
		return s.spawnWorker(ctx, run, phaseNumber, taskID, record.Title)
	}

	handle, err := s.gateway.Spawn(ctx, secondary.SpawnRequest{
		Role:        secondary.RoleWorker,
		RunID:       run.ID,
		PhaseNumber: phaseNumber,
		TaskID:      taskID,
		Project:     run.ProjectName,
		WorkDir:     record.WorktreePath,
		Branch:      record.Branch,
		Prompt:      workerPrompt(run.ID, phaseNumber, taskID, record.Title),
	})
	if err != nil {
		return fmt.Errorf("failed to respawn worker %s: %w", taskID, err)
	}
	if err := s.taskRepo.AssignWorker(ctx, run.ID, phaseNumber, taskID, handle.ID, record.Branch, record.WorktreePath); err != nil {
		return fmt.Errorf("failed to record worker session: %w", err)
	}
	return s.taskRepo.UpdateStatus(ctx, run.ID, phaseNumber, taskID, string(taskgraph.StatusInProgress), false)
}

func (s *WorkerScheduler) spawnWorker(ctx context.Context, run *secondary.RunRecord, phaseNumber int, taskID, title string) error {
	branch := worktree.WorkerBranch(run.ID, phaseNumber, taskID)
	path := worktree.WorkerPath(s.worktreeDir, run.ID, phaseNumber, taskID)

	err := s.locks.Do("repo:"+run.RepoDir, func() error {
		exists, err := s.git.BranchExists(ctx, run.RepoDir, branch)
		if err != nil {
			return err
		}
		if exists {
			// Worktree from an earlier spawn attempt; reuse it.
			return nil
		}
		return s.git.AddWorktree(ctx, run.RepoDir, path, branch, run.BaseBranch)
	})
	if err != nil {
		return fmt.Errorf("failed to prepare worktree for %s: %w", taskID, err)
	}

	handle, err := s.gateway.Spawn(ctx, secondary.SpawnRequest{
		Role:        secondary.RoleWorker,
		RunID:       run.ID,
		PhaseNumber: phaseNumber,
		TaskID:      taskID,
		Project:     run.ProjectName,
		WorkDir:     path,
		Branch:      branch,
		Prompt:      workerPrompt(run.ID, phaseNumber, taskID, title),
	})
	if err != nil {
		return fmt.Errorf("failed to spawn worker %s: %w", taskID, err)
	}

	if err := s.taskRepo.AssignWorker(ctx, run.ID, phaseNumber, taskID, handle.ID, branch, path); err != nil {
		return fmt.Errorf("failed to record worker session: %w", err)
	}
	return s.taskRepo.UpdateStatus(ctx, run.ID, phaseNumber, taskID, string(taskgraph.StatusInProgress), false)
}

// escalateSpawnFailure records the failure and opens an escalation. Spawn
// failures are not retried; a human resolves them.
func (s *WorkerScheduler) escalateSpawnFailure(ctx context.Context, run *secondary.RunRecord, phaseNumber int, taskID string, spawnErr error) {
	_ = s.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivitySpawnFailed,
		Message: fmt.Sprintf("failed to spawn worker %s: %v", taskID, spawnErr),
		Fields: map[string]any{
			"runId": run.ID,
			"phase": phaseNumber,
			"task":  taskID,
		},
	})

	id, err := s.escalationRepo.GetNextID(ctx)
	if err != nil {
		return
	}
	_ = s.escalationRepo.Create(ctx, &secondary.EscalationRecord{
		ID:          id,
		RunID:       run.ID,
		PhaseNumber: phaseNumber,
		TaskID:      taskID,
		Reason:      fmt.Sprintf("failed to spawn worker %s: %v", taskID, spawnErr),
		Severity:    primary.SeverityHigh,
	})
}

func recordsToGraphTasks(records []*secondary.TaskRecord) []taskgraph.Task {
	tasks := make([]taskgraph.Task, len(records))
	for i, r := range records {
		tasks[i] = taskgraph.Task{
			ID:        r.TaskID,
			Title:     r.Title,
			DependsOn: r.DependsOn,
			Status:    taskgraph.Status(r.Status),
		}
	}
	return tasks
}
