package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/foreman/internal/ports/secondary"
)

// ReviewChainRepository implements secondary.ReviewChainRepository with SQLite.
type ReviewChainRepository struct {
	db *sql.DB
}

// NewReviewChainRepository creates a new SQLite review chain repository.
func NewReviewChainRepository(db *sql.DB) *ReviewChainRepository {
	return &ReviewChainRepository{db: db}
}

// Init persists a new chain for a (run, phase) pair.
func (r *ReviewChainRepository) Init(ctx context.Context, chain *secondary.ReviewChainRecord) error {
	chainJSON, err := json.Marshal(chain.Chain)
	if err != nil {
		return fmt.Errorf("failed to encode chain: %w", err)
	}
	approvals, err := json.Marshal(chain.Approvals)
	if err != nil {
		return fmt.Errorf("failed to encode approvals: %w", err)
	}
	status := chain.Status
	if status == "" {
		status = secondary.ReviewChainAwaiting
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO review_chains (run_id, phase_number, chain, current_index, approvals, fix_attempts, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chain.RunID, chain.PhaseNumber, string(chainJSON), chain.CurrentIndex, string(approvals), chain.FixAttempts, status,
	)
	if err != nil {
		return fmt.Errorf("failed to init review chain: %w", err)
	}
	return nil
}

// Get retrieves the chain for a (run, phase) pair.
func (r *ReviewChainRepository) Get(ctx context.Context, runID string, phaseNumber int) (*secondary.ReviewChainRecord, error) {
	record := &secondary.ReviewChainRecord{}
	var chainJSON, approvals string
	var lastInstruction sql.NullString
	var createdAt, updatedAt time.Time

	err := r.db.QueryRowContext(ctx,
		`SELECT run_id, phase_number, chain, current_index, approvals, fix_attempts, last_instruction, status, created_at, updated_at FROM review_chains WHERE run_id = ? AND phase_number = ?`,
		runID, phaseNumber,
	).Scan(&record.RunID, &record.PhaseNumber, &chainJSON, &record.CurrentIndex, &approvals, &record.FixAttempts, &lastInstruction, &record.Status, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review chain for run %s phase %d not found", runID, phaseNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review chain: %w", err)
	}
	if err := json.Unmarshal([]byte(chainJSON), &record.Chain); err != nil {
		return nil, fmt.Errorf("failed to decode chain: %w", err)
	}
	if err := json.Unmarshal([]byte(approvals), &record.Approvals); err != nil {
		return nil, fmt.Errorf("failed to decode approvals: %w", err)
	}
	record.LastInstruction = lastInstruction.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

// Update updates an existing chain.
func (r *ReviewChainRepository) Update(ctx context.Context, chain *secondary.ReviewChainRecord) error {
	approvals, err := json.Marshal(chain.Approvals)
	if err != nil {
		return fmt.Errorf("failed to encode approvals: %w", err)
	}
	var lastInstruction sql.NullString
	if chain.LastInstruction != "" {
		lastInstruction = sql.NullString{String: chain.LastInstruction, Valid: true}
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE review_chains SET current_index = ?, approvals = ?, fix_attempts = ?, last_instruction = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE run_id = ? AND phase_number = ?`,
		chain.CurrentIndex, string(approvals), chain.FixAttempts, lastInstruction, chain.Status, chain.RunID, chain.PhaseNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to update review chain: %w", err)
	}
	return requireRow(result, "review chain", fmt.Sprintf("%s/p%d", chain.RunID, chain.PhaseNumber))
}

// Ensure ReviewChainRepository implements the interface
var _ secondary.ReviewChainRepository = (*ReviewChainRepository)(nil)
