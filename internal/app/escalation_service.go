package app

import (
	"context"
	"fmt"

	"github.com/example/foreman/internal/ctxutil"
	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/ports/secondary"
)

// EscalationServiceImpl implements the EscalationService interface.
type EscalationServiceImpl struct {
	escalationRepo secondary.EscalationRepository
}

// NewEscalationService creates a new EscalationService with injected dependencies.
func NewEscalationService(escalationRepo secondary.EscalationRepository) *EscalationServiceImpl {
	return &EscalationServiceImpl{
		escalationRepo: escalationRepo,
	}
}

// GetEscalation retrieves an escalation by ID.
func (s *EscalationServiceImpl) GetEscalation(ctx context.Context, escalationID string) (*primary.Escalation, error) {
	record, err := s.escalationRepo.GetByID(ctx, escalationID)
	if err != nil {
		return nil, err
	}
	return recordToEscalation(record), nil
}

// ListEscalations lists escalations with optional filters.
func (s *EscalationServiceImpl) ListEscalations(ctx context.Context, filters primary.EscalationFilters) ([]*primary.Escalation, error) {
	records, err := s.escalationRepo.List(ctx, secondary.EscalationFilters{
		RunID:  filters.RunID,
		TaskID: filters.TaskID,
		Status: filters.Status,
		Limit:  filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}

	escalations := make([]*primary.Escalation, len(records))
	for i, r := range records {
		escalations[i] = recordToEscalation(r)
	}
	return escalations, nil
}

// ResolveEscalation records a human resolution.
func (s *EscalationServiceImpl) ResolveEscalation(ctx context.Context, req primary.ResolveEscalationRequest) error {
	escalation, err := s.escalationRepo.GetByID(ctx, req.EscalationID)
	if err != nil {
		return fmt.Errorf("escalation not found: %w", err)
	}

	if escalation.Status != primary.EscalationStatusOpen {
		return fmt.Errorf("escalation %s is not open (current status: %s)", req.EscalationID, escalation.Status)
	}
	if req.Resolution == "" {
		return fmt.Errorf("resolution text is required")
	}

	resolvedBy := req.ResolvedBy
	if resolvedBy == "" {
		resolvedBy = ctxutil.ActorFromContext(ctx)
	}
	if resolvedBy == "" {
		resolvedBy = "human"
	}

	if err := s.escalationRepo.Resolve(ctx, req.EscalationID, req.Resolution, resolvedBy); err != nil {
		return fmt.Errorf("failed to resolve escalation: %w", err)
	}
	return nil
}

func recordToEscalation(r *secondary.EscalationRecord) *primary.Escalation {
	return &primary.Escalation{
		ID:           r.ID,
		RunID:        r.RunID,
		PhaseNumber:  r.PhaseNumber,
		RoleID:       r.RoleID,
		TaskID:       r.TaskID,
		Reason:       r.Reason,
		AttemptCount: r.AttemptCount,
		MaxAttempts:  r.MaxAttempts,
		Severity:     r.Severity,
		Status:       r.Status,
		Resolution:   r.Resolution,
		ResolvedBy:   r.ResolvedBy,
		CreatedAt:    r.CreatedAt,
		ResolvedAt:   r.ResolvedAt,
	}
}

// Ensure EscalationServiceImpl implements the interface
var _ primary.EscalationService = (*EscalationServiceImpl)(nil)
