package app

import (
	"context"
	"testing"

	"github.com/example/foreman/internal/locks"
	"github.com/example/foreman/internal/ports/secondary"
)

func newTestWorkerScheduler() (*WorkerScheduler, *mockTaskRepository, *mockGitClient, *mockAgentGateway, *mockEscalationRepository, *mockActivityLog) {
	tasks := newMockTaskRepository()
	git := newMockGitClient()
	gateway := newMockAgentGateway()
	escalations := newMockEscalationRepository()
	log := newMockActivityLog()
	s := NewWorkerScheduler(tasks, git, gateway, escalations, log, locks.NewManager(), "/tmp/foreman-worktrees")
	return s, tasks, git, gateway, escalations, log
}

func schedulerRun() *secondary.RunRecord {
	return &secondary.RunRecord{
		ID:          testRunID,
		ProjectName: "demo",
		Status:      "running",
		BaseBranch:  "main",
		RepoDir:     "/repo/demo",
	}
}

func seedSchedulerTask(tasks *mockTaskRepository, id, status string, deps ...string) {
	key := taskKey(testRunID, 1, id)
	tasks.tasks[key] = &secondary.TaskRecord{
		RunID:       testRunID,
		PhaseNumber: 1,
		TaskID:      id,
		Title:       "task " + id,
		DependsOn:   deps,
		Status:      status,
	}
	tasks.order = append(tasks.order, key)
}

func TestSpawnReady(t *testing.T) {
	ctx := context.Background()

	t.Run("spawns only tasks whose dependencies are done", func(t *testing.T) {
		s, tasks, _, gateway, _, _ := newTestWorkerScheduler()
		seedSchedulerTask(tasks, "t-001", "pending")
		seedSchedulerTask(tasks, "t-002", "pending", "t-001")

		spawned, err := s.SpawnReady(ctx, schedulerRun(), 1, 0)
		if err != nil {
			t.Fatalf("SpawnReady failed: %v", err)
		}
		if len(spawned) != 1 || spawned[0] != "t-001" {
			t.Errorf("expected only t-001 spawned, got %v", spawned)
		}
		workers := gateway.spawnsFor(secondary.RoleWorker)
		if len(workers) != 1 {
			t.Fatalf("expected one spawn, got %d", len(workers))
		}
		if workers[0].WorkDir != "/tmp/foreman-worktrees/0b7c9e2a/p1/t-001" {
			t.Errorf("unexpected worktree path %s", workers[0].WorkDir)
		}
		task, _ := tasks.Get(ctx, testRunID, 1, "t-001")
		if task.Status != "in_progress" || task.SessionID == "" {
			t.Errorf("expected assigned in_progress task, got %+v", task)
		}
	})

	t.Run("honors the worker budget", func(t *testing.T) {
		s, tasks, _, gateway, _, _ := newTestWorkerScheduler()
		seedSchedulerTask(tasks, "t-001", "pending")
		seedSchedulerTask(tasks, "t-002", "pending")
		seedSchedulerTask(tasks, "t-003", "in_progress")

		spawned, err := s.SpawnReady(ctx, schedulerRun(), 1, 2)
		if err != nil {
			t.Fatalf("SpawnReady failed: %v", err)
		}
		// One slot of the budget is taken by the in-flight worker.
		if len(spawned) != 1 {
			t.Errorf("expected one spawn under budget, got %v", spawned)
		}
		if gateway.spawnCount() != 1 {
			t.Errorf("expected one gateway spawn, got %d", gateway.spawnCount())
		}
	})

	t.Run("budget fully consumed spawns nothing", func(t *testing.T) {
		s, tasks, _, gateway, _, _ := newTestWorkerScheduler()
		seedSchedulerTask(tasks, "t-001", "pending")
		seedSchedulerTask(tasks, "t-002", "in_progress")

		spawned, err := s.SpawnReady(ctx, schedulerRun(), 1, 1)
		if err != nil {
			t.Fatalf("SpawnReady failed: %v", err)
		}
		if len(spawned) != 0 || gateway.spawnCount() != 0 {
			t.Errorf("expected no spawns, got %v", spawned)
		}
	})

	t.Run("spawn failure escalates and continues", func(t *testing.T) {
		s, tasks, _, gateway, escalations, log := newTestWorkerScheduler()
		seedSchedulerTask(tasks, "t-001", "pending")
		seedSchedulerTask(tasks, "t-002", "pending")
		gateway.failRoles[secondary.RoleWorker] = true

		spawned, err := s.SpawnReady(ctx, schedulerRun(), 1, 0)
		if err != nil {
			t.Fatalf("SpawnReady failed: %v", err)
		}
		if len(spawned) != 0 {
			t.Errorf("expected no spawns, got %v", spawned)
		}
		if !log.hasType(secondary.ActivitySpawnFailed) {
			t.Error("expected spawn-failed activity entries")
		}
		// One escalation per failed spawn, no retry path.
		if len(escalations.escalations) != 2 {
			t.Errorf("expected two escalations, got %d", len(escalations.escalations))
		}
		esc, ok := escalations.escalations["ESC-001"]
		if !ok {
			t.Fatal("expected escalation ESC-001")
		}
		if esc.TaskID != "t-001" || esc.Severity != "high" || esc.Status != "open" {
			t.Errorf("unexpected escalation %+v", esc)
		}
		task, _ := tasks.Get(ctx, testRunID, 1, "t-001")
		if task.Status != "pending" {
			t.Errorf("expected task left pending, got %s", task.Status)
		}
	})

	t.Run("reuses an existing branch from an earlier attempt", func(t *testing.T) {
		s, tasks, git, _, _, _ := newTestWorkerScheduler()
		seedSchedulerTask(tasks, "t-001", "pending")
		git.branches["foreman/0b7c9e2a/p1/t-001"] = true

		if _, err := s.SpawnReady(ctx, schedulerRun(), 1, 0); err != nil {
			t.Fatalf("SpawnReady failed: %v", err)
		}
		if len(git.worktrees) != 0 {
			t.Errorf("expected no new worktree, got %v", git.worktrees)
		}
	})
}

func TestRespawn(t *testing.T) {
	ctx := context.Background()
	s, tasks, git, gateway, _, _ := newTestWorkerScheduler()
	seedSchedulerTask(tasks, "t-001", "failed")
	record := tasks.tasks[taskKey(testRunID, 1, "t-001")]
	record.Branch = "foreman/0b7c9e2a/p1/t-001"
	record.WorktreePath = "/tmp/foreman-worktrees/0b7c9e2a/p1/t-001"

	if err := s.Respawn(ctx, schedulerRun(), 1, "t-001"); err != nil {
		t.Fatalf("Respawn failed: %v", err)
	}
	workers := gateway.spawnsFor(secondary.RoleWorker)
	if len(workers) != 1 {
		t.Fatalf("expected one spawn, got %d", len(workers))
	}
	if workers[0].WorkDir != record.WorktreePath || workers[0].Branch != record.Branch {
		t.Errorf("expected reuse of worktree and branch, got %+v", workers[0])
	}
	if len(git.worktrees) != 0 {
		t.Errorf("expected no new worktree for a retry, got %v", git.worktrees)
	}
	if record.Status != "in_progress" {
		t.Errorf("expected task back in_progress, got %s", record.Status)
	}
}
