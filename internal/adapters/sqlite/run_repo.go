package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/foreman/internal/ports/secondary"
)

// RunRepository implements secondary.RunRepository with SQLite.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create persists a new run.
func (r *RunRepository) Create(ctx context.Context, run *secondary.RunRecord) error {
	status := run.Status
	if status == "" {
		status = "running"
	}
	phase := run.CurrentPhase
	if phase == 0 {
		phase = 1
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, project_name, current_phase, status, base_branch, repo_dir) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.ProjectName, phase, status, run.BaseBranch, run.RepoDir,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*secondary.RunRecord, error) {
	record, err := r.scanRun(r.db.QueryRowContext(ctx,
		`SELECT id, project_name, current_phase, status, base_branch, repo_dir, created_at, updated_at, completed_at FROM runs WHERE id = ?`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return record, nil
}

// GetActiveByProject retrieves the running run for a project. No active
// run is not an error; it returns (nil, nil).
func (r *RunRepository) GetActiveByProject(ctx context.Context, projectName string) (*secondary.RunRecord, error) {
	record, err := r.scanRun(r.db.QueryRowContext(ctx,
		`SELECT id, project_name, current_phase, status, base_branch, repo_dir, created_at, updated_at, completed_at FROM runs WHERE project_name = ? AND status = 'running' ORDER BY created_at DESC LIMIT 1`,
		projectName,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active run: %w", err)
	}
	return record, nil
}

// List retrieves runs matching the given filters.
func (r *RunRepository) List(ctx context.Context, filters secondary.RunFilters) ([]*secondary.RunRecord, error) {
	query := `SELECT id, project_name, current_phase, status, base_branch, repo_dir, created_at, updated_at, completed_at FROM runs WHERE 1=1`
	args := []any{}

	if filters.ProjectName != "" {
		query += " AND project_name = ?"
		args = append(args, filters.ProjectName)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*secondary.RunRecord
	for rows.Next() {
		record, err := r.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, record)
	}
	return runs, rows.Err()
}

// SetPhase persists the run's current phase number.
func (r *RunRepository) SetPhase(ctx context.Context, id string, phase int) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE runs SET current_phase = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		phase, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set run phase: %w", err)
	}
	return requireRow(result, "run", id)
}

// SetStatus updates the run status, optionally stamping completed_at.
func (r *RunRepository) SetStatus(ctx context.Context, id, status string, setCompleted bool) error {
	var query string
	if setCompleted {
		query = "UPDATE runs SET status = ?, completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	} else {
		query = "UPDATE runs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	}
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to set run status: %w", err)
	}
	return requireRow(result, "run", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RunRepository) scanRun(row rowScanner) (*secondary.RunRecord, error) {
	record := &secondary.RunRecord{}
	var createdAt, updatedAt time.Time
	var completedAt sql.NullTime
	err := row.Scan(&record.ID, &record.ProjectName, &record.CurrentPhase, &record.Status, &record.BaseBranch, &record.RepoDir, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	if completedAt.Valid {
		record.CompletedAt = completedAt.Time.Format(time.RFC3339)
	}
	return record, nil
}

// Ensure RunRepository implements the interface
var _ secondary.RunRepository = (*RunRepository)(nil)
