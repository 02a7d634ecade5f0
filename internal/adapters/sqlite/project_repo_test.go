package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/foreman/internal/adapters/sqlite"
	"github.com/example/foreman/internal/ports/secondary"
)

func TestProjectRepository(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewProjectRepository(testDB)
	ctx := context.Background()

	t.Run("create and get by name", func(t *testing.T) {
		project := &secondary.ProjectRecord{
			Name:       "billing",
			RepoDir:    "/tmp/repos/billing",
			BaseBranch: "main",
			Status:     "active",
		}
		if err := repo.Create(ctx, project); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := repo.GetByName(ctx, "billing")
		if err != nil {
			t.Fatalf("GetByName failed: %v", err)
		}
		if got.RepoDir != "/tmp/repos/billing" || got.BaseBranch != "main" {
			t.Errorf("got %+v", got)
		}
		if got.Archived {
			t.Error("new project is archived")
		}
	})

	t.Run("duplicate name fails", func(t *testing.T) {
		dup := &secondary.ProjectRecord{Name: "billing", RepoDir: "/elsewhere", BaseBranch: "main", Status: "active"}
		if err := repo.Create(ctx, dup); err == nil {
			t.Error("expected error on duplicate project name")
		}
	})

	t.Run("set phase and status", func(t *testing.T) {
		if err := repo.SetPhase(ctx, "billing", 2); err != nil {
			t.Fatalf("SetPhase failed: %v", err)
		}
		if err := repo.SetStatus(ctx, "billing", "completed"); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		got, _ := repo.GetByName(ctx, "billing")
		if got.CurrentPhase != 2 || got.Status != "completed" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("archive hides from default listing", func(t *testing.T) {
		seedProject(t, testDB, "payments")
		if err := repo.Archive(ctx, "billing"); err != nil {
			t.Fatalf("Archive failed: %v", err)
		}

		visible, err := repo.List(ctx, false)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(visible) != 1 || visible[0].Name != "payments" {
			t.Errorf("got %+v", visible)
		}

		all, _ := repo.List(ctx, true)
		if len(all) != 2 {
			t.Errorf("got %d projects, want 2", len(all))
		}
	})

	t.Run("missing project returns error", func(t *testing.T) {
		if _, err := repo.GetByName(ctx, "ghost"); err == nil {
			t.Error("expected error for missing project")
		}
		if err := repo.SetPhase(ctx, "ghost", 1); err == nil {
			t.Error("expected error updating missing project")
		}
	})
}
