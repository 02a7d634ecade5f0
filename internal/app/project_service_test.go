package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/ports/secondary"
)

func newTestProjectService() (*ProjectServiceImpl, *mockProjectRepository, *mockAgentGateway) {
	projects := newMockProjectRepository()
	gateway := newMockAgentGateway()
	return NewProjectService(projects, gateway, newMockActivityLog()), projects, gateway
}

func TestRegisterProject(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults the base branch to main", func(t *testing.T) {
		svc, _, _ := newTestProjectService()

		project, err := svc.RegisterProject(ctx, primary.RegisterProjectRequest{
			Name:    "demo",
			RepoDir: "/repo/demo",
		})
		if err != nil {
			t.Fatalf("RegisterProject failed: %v", err)
		}
		if project.BaseBranch != "main" {
			t.Errorf("expected base branch main, got %s", project.BaseBranch)
		}
		if project.Status != "active" {
			t.Errorf("expected active status, got %s", project.Status)
		}
	})

	t.Run("rejects missing fields and duplicate names", func(t *testing.T) {
		svc, _, _ := newTestProjectService()

		if _, err := svc.RegisterProject(ctx, primary.RegisterProjectRequest{RepoDir: "/repo/x"}); err == nil {
			t.Error("expected error for missing name")
		}
		if _, err := svc.RegisterProject(ctx, primary.RegisterProjectRequest{Name: "x"}); err == nil {
			t.Error("expected error for missing repo dir")
		}
		req := primary.RegisterProjectRequest{Name: "demo", RepoDir: "/repo/demo"}
		if _, err := svc.RegisterProject(ctx, req); err != nil {
			t.Fatalf("RegisterProject failed: %v", err)
		}
		if _, err := svc.RegisterProject(ctx, req); err == nil {
			t.Error("expected error for duplicate name")
		}
	})
}

func TestArchiveProject(t *testing.T) {
	ctx := context.Background()
	svc, projects, _ := newTestProjectService()
	projects.projects["demo"] = &secondary.ProjectRecord{Name: "demo", RepoDir: "/repo/demo", Status: "active"}

	if err := svc.ArchiveProject(ctx, "demo"); err != nil {
		t.Fatalf("ArchiveProject failed: %v", err)
	}
	listed, err := svc.ListProjects(ctx, false)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("expected archived project hidden, got %d entries", len(listed))
	}
	if _, err := svc.StartInterview(ctx, "demo"); err == nil {
		t.Error("expected interview rejected for an archived project")
	}
}

func TestStartInterview(t *testing.T) {
	ctx := context.Background()

	t.Run("spawns the interviewer in the project repo", func(t *testing.T) {
		svc, projects, gateway := newTestProjectService()
		projects.projects["demo"] = &secondary.ProjectRecord{Name: "demo", RepoDir: "/repo/demo", Status: "active"}

		session, err := svc.StartInterview(ctx, "demo")
		if err != nil {
			t.Fatalf("StartInterview failed: %v", err)
		}
		if session.Deduplicated {
			t.Error("first interview should not be deduplicated")
		}
		if session.SessionID == "" {
			t.Error("expected a session id")
		}
		interviews := gateway.spawnsFor(secondary.RoleInterviewer)
		if len(interviews) != 1 || interviews[0].WorkDir != "/repo/demo" {
			t.Fatalf("expected one interviewer in /repo/demo, got %+v", interviews)
		}
	})

	t.Run("concurrent starts spawn exactly one agent", func(t *testing.T) {
		svc, projects, gateway := newTestProjectService()
		projects.projects["demo"] = &secondary.ProjectRecord{Name: "demo", RepoDir: "/repo/demo", Status: "active"}
		gateway.block = make(chan struct{})

		var wg sync.WaitGroup
		sessions := make([]*primary.InterviewSession, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s, err := svc.StartInterview(ctx, "demo")
				if err != nil {
					t.Errorf("StartInterview failed: %v", err)
					return
				}
				sessions[i] = s
			}(i)
		}
		// Let both callers reach the spawn before releasing it.
		time.Sleep(50 * time.Millisecond)
		close(gateway.block)
		wg.Wait()

		if gateway.spawnCount() != 1 {
			t.Fatalf("expected exactly one spawn, got %d", gateway.spawnCount())
		}
		if sessions[0] == nil || sessions[1] == nil {
			t.Fatal("expected both callers to get a session")
		}
		if sessions[0].SessionID != sessions[1].SessionID {
			t.Error("expected both callers to share the session")
		}
		if sessions[0].Deduplicated == sessions[1].Deduplicated {
			t.Error("expected exactly one caller marked deduplicated")
		}
	})

	t.Run("spawn failure is reported to every waiter", func(t *testing.T) {
		svc, projects, gateway := newTestProjectService()
		projects.projects["demo"] = &secondary.ProjectRecord{Name: "demo", RepoDir: "/repo/demo", Status: "active"}
		gateway.spawnErr = errors.New("tmux unavailable")

		if _, err := svc.StartInterview(ctx, "demo"); err == nil {
			t.Error("expected spawn failure to surface")
		}
		// The failed attempt must not leave a stuck inflight entry.
		gateway.spawnErr = nil
		if _, err := svc.StartInterview(ctx, "demo"); err != nil {
			t.Errorf("expected retry after failure to work: %v", err)
		}
	})
}
