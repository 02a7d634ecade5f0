package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/foreman/internal/ports/secondary"
)

// RetryStateRepository implements secondary.RetryStateRepository with SQLite.
type RetryStateRepository struct {
	db *sql.DB
}

// NewRetryStateRepository creates a new SQLite retry state repository.
func NewRetryStateRepository(db *sql.DB) *RetryStateRepository {
	return &RetryStateRepository{db: db}
}

// Get retrieves the retry state for a task, or nil when absent.
func (r *RetryStateRepository) Get(ctx context.Context, runID string, phaseNumber int, taskID string) (*secondary.RetryStateRecord, error) {
	record := &secondary.RetryStateRecord{}
	var attempts string

	err := r.db.QueryRowContext(ctx,
		`SELECT run_id, phase_number, task_id, status, max_attempts, base_delay_ms, max_delay_ms, attempts FROM retry_states WHERE run_id = ? AND phase_number = ? AND task_id = ?`,
		runID, phaseNumber, taskID,
	).Scan(&record.RunID, &record.PhaseNumber, &record.TaskID, &record.Status, &record.MaxAttempts, &record.BaseDelayMs, &record.MaxDelayMs, &attempts)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get retry state: %w", err)
	}
	if err := json.Unmarshal([]byte(attempts), &record.Attempts); err != nil {
		return nil, fmt.Errorf("failed to decode attempts: %w", err)
	}
	return record, nil
}

// Save upserts the retry state including its attempt list.
func (r *RetryStateRepository) Save(ctx context.Context, state *secondary.RetryStateRecord) error {
	attempts, err := json.Marshal(state.Attempts)
	if err != nil {
		return fmt.Errorf("failed to encode attempts: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO retry_states (run_id, phase_number, task_id, status, max_attempts, base_delay_ms, max_delay_ms, attempts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, phase_number, task_id) DO UPDATE SET status = excluded.status, attempts = excluded.attempts`,
		state.RunID, state.PhaseNumber, state.TaskID, state.Status, state.MaxAttempts, state.BaseDelayMs, state.MaxDelayMs, string(attempts),
	)
	if err != nil {
		return fmt.Errorf("failed to save retry state: %w", err)
	}
	return nil
}

// Clear removes the retry state after an eventual success.
func (r *RetryStateRepository) Clear(ctx context.Context, runID string, phaseNumber int, taskID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM retry_states WHERE run_id = ? AND phase_number = ? AND task_id = ?",
		runID, phaseNumber, taskID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear retry state: %w", err)
	}
	return nil
}

// Ensure RetryStateRepository implements the interface
var _ secondary.RetryStateRepository = (*RetryStateRepository)(nil)
