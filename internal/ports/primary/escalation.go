package primary

import "context"

// Escalation status constants
const (
	EscalationStatusOpen     = "open"
	EscalationStatusResolved = "resolved"
)

// Escalation severity constants
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// EscalationService defines the primary port for escalation operations.
// Escalations are the single funnel for anything the automated pipeline
// cannot resolve.
type EscalationService interface {
	// GetEscalation retrieves an escalation by ID.
	GetEscalation(ctx context.Context, escalationID string) (*Escalation, error)

	// ListEscalations lists escalations with optional filters.
	ListEscalations(ctx context.Context, filters EscalationFilters) ([]*Escalation, error)

	// ResolveEscalation records a human resolution.
	ResolveEscalation(ctx context.Context, req ResolveEscalationRequest) error
}

// Escalation represents an escalation entity at the port boundary.
type Escalation struct {
	ID           string
	RunID        string
	PhaseNumber  int
	RoleID       string // May be empty
	TaskID       string // May be empty
	Reason       string
	AttemptCount int
	MaxAttempts  int
	Severity     string
	Status       string
	Resolution   string // May be empty
	ResolvedBy   string // May be empty
	CreatedAt    string
	ResolvedAt   string // May be empty
}

// EscalationFilters contains filter options for listing escalations.
type EscalationFilters struct {
	RunID  string
	TaskID string
	Status string
	Limit  int
}

// ResolveEscalationRequest carries a human resolution.
type ResolveEscalationRequest struct {
	EscalationID string
	Resolution   string
	ResolvedBy   string
}
