package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/foreman/internal/ports/secondary"
)

// PhaseStateRepository implements secondary.PhaseStateRepository with SQLite.
type PhaseStateRepository struct {
	db *sql.DB
}

// NewPhaseStateRepository creates a new SQLite phase state repository.
func NewPhaseStateRepository(db *sql.DB) *PhaseStateRepository {
	return &PhaseStateRepository{db: db}
}

// Init persists a new barrier instance with its expected worker set.
func (r *PhaseStateRepository) Init(ctx context.Context, state *secondary.PhaseStateRecord) error {
	expected, err := json.Marshal(state.Expected)
	if err != nil {
		return fmt.Errorf("failed to encode expected workers: %w", err)
	}

	var phaseBranch sql.NullString
	if state.PhaseBranch != "" {
		phaseBranch = sql.NullString{String: state.PhaseBranch, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO phase_states (run_id, phase_number, phase_name, phase_branch, base_branch, repo_dir, expected_workers) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		state.RunID, state.PhaseNumber, state.PhaseName, phaseBranch, state.BaseBranch, state.RepoDir, string(expected),
	)
	if err != nil {
		return fmt.Errorf("failed to init phase state: %w", err)
	}
	return nil
}

// Get retrieves a barrier with all recorded worker results.
func (r *PhaseStateRepository) Get(ctx context.Context, runID string, phaseNumber int) (*secondary.PhaseStateRecord, error) {
	record := &secondary.PhaseStateRecord{}
	var phaseBranch sql.NullString
	var expected string
	var createdAt time.Time

	err := r.db.QueryRowContext(ctx,
		`SELECT run_id, phase_number, phase_name, phase_branch, base_branch, repo_dir, expected_workers, created_at FROM phase_states WHERE run_id = ? AND phase_number = ?`,
		runID, phaseNumber,
	).Scan(&record.RunID, &record.PhaseNumber, &record.PhaseName, &phaseBranch, &record.BaseBranch, &record.RepoDir, &expected, &createdAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("phase state for run %s phase %d not found", runID, phaseNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get phase state: %w", err)
	}
	record.PhaseBranch = phaseBranch.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	if err := json.Unmarshal([]byte(expected), &record.Expected); err != nil {
		return nil, fmt.Errorf("failed to decode expected workers: %w", err)
	}

	results, err := r.results(ctx, runID, phaseNumber)
	if err != nil {
		return nil, err
	}
	record.Results = results
	return record, nil
}

// RecordResult stores one worker's terminal result. INSERT OR IGNORE keeps
// the first result authoritative; duplicate callbacks never overwrite it.
func (r *PhaseStateRepository) RecordResult(ctx context.Context, runID string, phaseNumber int, result secondary.WorkerResultRecord) error {
	var output, errMsg sql.NullString
	if result.Output != "" {
		output = sql.NullString{String: result.Output, Valid: true}
	}
	if result.Error != "" {
		errMsg = sql.NullString{String: result.Error, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO phase_worker_results (run_id, phase_number, worker_id, status, output, error) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, phaseNumber, result.WorkerID, result.Status, output, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to record worker result: %w", err)
	}
	return nil
}

// SetPhaseBranch records the integration branch created by the merger.
func (r *PhaseStateRepository) SetPhaseBranch(ctx context.Context, runID string, phaseNumber int, branch string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE phase_states SET phase_branch = ? WHERE run_id = ? AND phase_number = ?",
		branch, runID, phaseNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to set phase branch: %w", err)
	}
	return requireRow(result, "phase state", fmt.Sprintf("%s/p%d", runID, phaseNumber))
}

func (r *PhaseStateRepository) results(ctx context.Context, runID string, phaseNumber int) ([]secondary.WorkerResultRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT worker_id, status, output, error, reported_at FROM phase_worker_results WHERE run_id = ? AND phase_number = ? ORDER BY reported_at`,
		runID, phaseNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list worker results: %w", err)
	}
	defer rows.Close()

	var results []secondary.WorkerResultRecord
	for rows.Next() {
		var rec secondary.WorkerResultRecord
		var output, errMsg sql.NullString
		var reportedAt time.Time
		if err := rows.Scan(&rec.WorkerID, &rec.Status, &output, &errMsg, &reportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan worker result: %w", err)
		}
		rec.Output = output.String
		rec.Error = errMsg.String
		rec.ReportedAt = reportedAt.Format(time.RFC3339)
		results = append(results, rec)
	}
	return results, rows.Err()
}

// Ensure PhaseStateRepository implements the interface
var _ secondary.PhaseStateRepository = (*PhaseStateRepository)(nil)
