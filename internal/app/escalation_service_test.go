package app

import (
	"context"
	"testing"

	"github.com/example/foreman/internal/ctxutil"
	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/ports/secondary"
)

func TestResolveEscalation(t *testing.T) {
	ctx := context.Background()

	seed := func() (*EscalationServiceImpl, *mockEscalationRepository) {
		repo := newMockEscalationRepository()
		repo.escalations["ESC-001"] = &secondary.EscalationRecord{
			ID:     "ESC-001",
			RunID:  testRunID,
			TaskID: "t-001",
			Reason: "retry budget exhausted",
			Status: "open",
		}
		return NewEscalationService(repo), repo
	}

	t.Run("records the resolution", func(t *testing.T) {
		svc, repo := seed()

		err := svc.ResolveEscalation(ctx, primary.ResolveEscalationRequest{
			EscalationID: "ESC-001",
			Resolution:   "reran after fixing the flaky test",
		})
		if err != nil {
			t.Fatalf("ResolveEscalation failed: %v", err)
		}
		esc := repo.escalations["ESC-001"]
		if esc.Status != "resolved" {
			t.Errorf("expected resolved, got %s", esc.Status)
		}
		if esc.ResolvedBy != "human" {
			t.Errorf("expected default resolver human, got %s", esc.ResolvedBy)
		}
	})

	t.Run("context actor is recorded as the resolver", func(t *testing.T) {
		svc, repo := seed()

		err := svc.ResolveEscalation(ctxutil.WithActor(ctx, "alice"), primary.ResolveEscalationRequest{
			EscalationID: "ESC-001",
			Resolution:   "rebased and reran the phase",
		})
		if err != nil {
			t.Fatalf("ResolveEscalation failed: %v", err)
		}
		if got := repo.escalations["ESC-001"].ResolvedBy; got != "alice" {
			t.Errorf("expected resolver alice, got %s", got)
		}
	})

	t.Run("requires resolution text", func(t *testing.T) {
		svc, _ := seed()

		err := svc.ResolveEscalation(ctx, primary.ResolveEscalationRequest{EscalationID: "ESC-001"})
		if err == nil {
			t.Error("expected error for empty resolution")
		}
	})

	t.Run("only open escalations can be resolved", func(t *testing.T) {
		svc, repo := seed()
		repo.escalations["ESC-001"].Status = "resolved"

		err := svc.ResolveEscalation(ctx, primary.ResolveEscalationRequest{
			EscalationID: "ESC-001",
			Resolution:   "duplicate",
		})
		if err == nil {
			t.Error("expected error for an already resolved escalation")
		}
	})

	t.Run("unknown escalation errors", func(t *testing.T) {
		svc, _ := seed()

		err := svc.ResolveEscalation(ctx, primary.ResolveEscalationRequest{
			EscalationID: "ESC-999",
			Resolution:   "n/a",
		})
		if err == nil {
			t.Error("expected error for an unknown escalation")
		}
	})
}

func TestListEscalations(t *testing.T) {
	ctx := context.Background()
	repo := newMockEscalationRepository()
	repo.escalations["ESC-001"] = &secondary.EscalationRecord{ID: "ESC-001", RunID: testRunID, Status: "open"}
	repo.escalations["ESC-002"] = &secondary.EscalationRecord{ID: "ESC-002", RunID: "other-run", Status: "resolved"}
	svc := NewEscalationService(repo)

	open, err := svc.ListEscalations(ctx, primary.EscalationFilters{Status: "open"})
	if err != nil {
		t.Fatalf("ListEscalations failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != "ESC-001" {
		t.Errorf("expected only ESC-001 open, got %+v", open)
	}
}
