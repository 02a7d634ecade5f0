package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/foreman/internal/ports/secondary"
)

// EscalationRepository implements secondary.EscalationRepository with SQLite.
type EscalationRepository struct {
	db *sql.DB
}

// NewEscalationRepository creates a new SQLite escalation repository.
func NewEscalationRepository(db *sql.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// Create persists a new escalation.
func (r *EscalationRepository) Create(ctx context.Context, escalation *secondary.EscalationRecord) error {
	var roleID, taskID sql.NullString
	if escalation.RoleID != "" {
		roleID = sql.NullString{String: escalation.RoleID, Valid: true}
	}
	if escalation.TaskID != "" {
		taskID = sql.NullString{String: escalation.TaskID, Valid: true}
	}
	severity := escalation.Severity
	if severity == "" {
		severity = "medium"
	}
	status := escalation.Status
	if status == "" {
		status = "open"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO escalations (id, run_id, phase_number, role_id, task_id, reason, attempt_count, max_attempts, severity, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		escalation.ID, escalation.RunID, escalation.PhaseNumber, roleID, taskID, escalation.Reason, escalation.AttemptCount, escalation.MaxAttempts, severity, status,
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}
	return nil
}

// GetByID retrieves an escalation by its ID.
func (r *EscalationRepository) GetByID(ctx context.Context, id string) (*secondary.EscalationRecord, error) {
	record, err := r.scanEscalation(r.db.QueryRowContext(ctx,
		`SELECT id, run_id, phase_number, role_id, task_id, reason, attempt_count, max_attempts, severity, status, resolution, resolved_by, created_at, resolved_at FROM escalations WHERE id = ?`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("escalation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}
	return record, nil
}

// List retrieves escalations matching the given filters.
func (r *EscalationRepository) List(ctx context.Context, filters secondary.EscalationFilters) ([]*secondary.EscalationRecord, error) {
	query := `SELECT id, run_id, phase_number, role_id, task_id, reason, attempt_count, max_attempts, severity, status, resolution, resolved_by, created_at, resolved_at FROM escalations WHERE 1=1`
	args := []any{}

	if filters.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filters.RunID)
	}
	if filters.TaskID != "" {
		query += " AND task_id = ?"
		args = append(args, filters.TaskID)
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
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer rows.Close()

	var escalations []*secondary.EscalationRecord
	for rows.Next() {
		record, err := r.scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		escalations = append(escalations, record)
	}
	return escalations, rows.Err()
}

// Resolve resolves an escalation with resolution text.
func (r *EscalationRepository) Resolve(ctx context.Context, id, resolution, resolvedBy string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE escalations SET status = 'resolved', resolution = ?, resolved_by = ?, resolved_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'open'",
		resolution, resolvedBy, id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve escalation: %w", err)
	}
	return requireRow(result, "open escalation", id)
}

// ResolveByTask auto-resolves open escalations for a task and returns the
// resolved escalation IDs.
func (r *EscalationRepository) ResolveByTask(ctx context.Context, runID string, phaseNumber int, taskID, resolution string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM escalations WHERE run_id = ? AND phase_number = ? AND task_id = ? AND status = 'open'",
		runID, phaseNumber, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find escalations for task: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan escalation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx,
			"UPDATE escalations SET status = 'resolved', resolution = ?, resolved_by = 'auto', resolved_at = CURRENT_TIMESTAMP WHERE id = ?",
			resolution, id,
		); err != nil {
			return nil, fmt.Errorf("failed to auto-resolve escalation %s: %w", id, err)
		}
	}
	return ids, nil
}

// GetNextID returns the next available escalation ID.
func (r *EscalationRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	prefixLen := len("ESC-") + 1
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM escalations", prefixLen),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next escalation ID: %w", err)
	}
	return fmt.Sprintf("ESC-%03d", maxID+1), nil
}

func (r *EscalationRepository) scanEscalation(row rowScanner) (*secondary.EscalationRecord, error) {
	record := &secondary.EscalationRecord{}
	var roleID, taskID, resolution, resolvedBy sql.NullString
	var createdAt time.Time
	var resolvedAt sql.NullTime

	err := row.Scan(&record.ID, &record.RunID, &record.PhaseNumber, &roleID, &taskID, &record.Reason, &record.AttemptCount, &record.MaxAttempts, &record.Severity, &record.Status, &resolution, &resolvedBy, &createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	record.RoleID = roleID.String
	record.TaskID = taskID.String
	record.Resolution = resolution.String
	record.ResolvedBy = resolvedBy.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	if resolvedAt.Valid {
		record.ResolvedAt = resolvedAt.Time.Format(time.RFC3339)
	}
	return record, nil
}

// Ensure EscalationRepository implements the interface
var _ secondary.EscalationRepository = (*EscalationRepository)(nil)
