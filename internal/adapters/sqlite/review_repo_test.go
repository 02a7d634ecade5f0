package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/foreman/internal/adapters/sqlite"
	"github.com/example/foreman/internal/ports/secondary"
)

func TestReviewChainRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewReviewChainRepository(db)
	ctx := context.Background()

	t.Run("init and get round-trip", func(t *testing.T) {
		chain := &secondary.ReviewChainRecord{
			RunID:       "run-001",
			PhaseNumber: 2,
			Chain:       []string{"architect", "qa"},
			Status:      secondary.ReviewChainAwaiting,
		}
		if err := repo.Init(ctx, chain); err != nil {
			t.Fatalf("Init failed: %v", err)
		}

		got, err := repo.Get(ctx, "run-001", 2)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if len(got.Chain) != 2 || got.Chain[0] != "architect" {
			t.Errorf("chain = %v", got.Chain)
		}
		if got.CurrentIndex != 0 || got.FixAttempts != 0 || len(got.Approvals) != 0 {
			t.Errorf("fresh chain has state: %+v", got)
		}
		if got.Status != secondary.ReviewChainAwaiting {
			t.Errorf("status = %q", got.Status)
		}
	})

	t.Run("duplicate init fails", func(t *testing.T) {
		dup := &secondary.ReviewChainRecord{
			RunID: "run-001", PhaseNumber: 2,
			Chain: []string{"architect"}, Status: secondary.ReviewChainAwaiting,
		}
		if err := repo.Init(ctx, dup); err == nil {
			t.Error("expected error on duplicate init")
		}
	})

	t.Run("update persists progress and instructions", func(t *testing.T) {
		chain, _ := repo.Get(ctx, "run-001", 2)
		chain.CurrentIndex = 1
		chain.Approvals = []string{"architect"}
		chain.FixAttempts = 2
		chain.LastInstruction = "tighten error handling in the merge path"
		chain.Status = secondary.ReviewChainFixing
		if err := repo.Update(ctx, chain); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, _ := repo.Get(ctx, "run-001", 2)
		if got.CurrentIndex != 1 || got.FixAttempts != 2 {
			t.Errorf("got %+v", got)
		}
		if len(got.Approvals) != 1 || got.Approvals[0] != "architect" {
			t.Errorf("approvals = %v", got.Approvals)
		}
		if got.LastInstruction != "tighten error handling in the merge path" {
			t.Errorf("last instruction = %q", got.LastInstruction)
		}
		if got.Status != secondary.ReviewChainFixing {
			t.Errorf("status = %q", got.Status)
		}
	})

	t.Run("missing chain returns error", func(t *testing.T) {
		if _, err := repo.Get(ctx, "run-001", 9); err == nil {
			t.Error("expected error for missing chain")
		}
	})
}
