package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/foreman/internal/ports/secondary"
)

// TaskRepository implements secondary.TaskRepository with SQLite.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// CreateBatch persists a phase's task list in one transaction.
func (r *TaskRepository) CreateBatch(ctx context.Context, tasks []*secondary.TaskRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, task := range tasks {
		deps, err := json.Marshal(task.DependsOn)
		if err != nil {
			return fmt.Errorf("failed to encode dependencies for task %s: %w", task.TaskID, err)
		}
		status := task.Status
		if status == "" {
			status = "pending"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (run_id, phase_number, task_id, title, depends_on, status) VALUES (?, ?, ?, ?, ?, ?)`,
			task.RunID, task.PhaseNumber, task.TaskID, task.Title, string(deps), status,
		); err != nil {
			return fmt.Errorf("failed to create task %s: %w", task.TaskID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tasks: %w", err)
	}
	return nil
}

// Get retrieves a task.
func (r *TaskRepository) Get(ctx context.Context, runID string, phaseNumber int, taskID string) (*secondary.TaskRecord, error) {
	record, err := r.scanTask(r.db.QueryRowContext(ctx,
		`SELECT run_id, phase_number, task_id, title, depends_on, status, session_id, branch, worktree_path, created_at, updated_at, completed_at FROM tasks WHERE run_id = ? AND phase_number = ? AND task_id = ?`,
		runID, phaseNumber, taskID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s not found in run %s phase %d", taskID, runID, phaseNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return record, nil
}

// ListByPhase retrieves all tasks for a (run, phase) pair.
func (r *TaskRepository) ListByPhase(ctx context.Context, runID string, phaseNumber int) ([]*secondary.TaskRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, phase_number, task_id, title, depends_on, status, session_id, branch, worktree_path, created_at, updated_at, completed_at FROM tasks WHERE run_id = ? AND phase_number = ? ORDER BY task_id`,
		runID, phaseNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*secondary.TaskRecord
	for rows.Next() {
		record, err := r.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, record)
	}
	return tasks, rows.Err()
}

// UpdateStatus updates a task's status, optionally stamping completed_at.
func (r *TaskRepository) UpdateStatus(ctx context.Context, runID string, phaseNumber int, taskID, status string, setCompleted bool) error {
	var query string
	if setCompleted {
		query = "UPDATE tasks SET status = ?, completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE run_id = ? AND phase_number = ? AND task_id = ?"
	} else {
		query = "UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE run_id = ? AND phase_number = ? AND task_id = ?"
	}
	result, err := r.db.ExecContext(ctx, query, status, runID, phaseNumber, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return requireRow(result, "task", taskID)
}

// AssignWorker records the session, branch, and worktree for a spawned task.
func (r *TaskRepository) AssignWorker(ctx context.Context, runID string, phaseNumber int, taskID, sessionID, branch, worktreePath string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET session_id = ?, branch = ?, worktree_path = ?, status = 'in_progress', updated_at = CURRENT_TIMESTAMP WHERE run_id = ? AND phase_number = ? AND task_id = ?`,
		sessionID, branch, worktreePath, runID, phaseNumber, taskID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign worker: %w", err)
	}
	return requireRow(result, "task", taskID)
}

func (r *TaskRepository) scanTask(row rowScanner) (*secondary.TaskRecord, error) {
	record := &secondary.TaskRecord{}
	var deps string
	var sessionID, branch, worktreePath sql.NullString
	var createdAt, updatedAt time.Time
	var completedAt sql.NullTime

	err := row.Scan(&record.RunID, &record.PhaseNumber, &record.TaskID, &record.Title, &deps, &record.Status, &sessionID, &branch, &worktreePath, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(deps), &record.DependsOn); err != nil {
		return nil, fmt.Errorf("failed to decode dependencies: %w", err)
	}
	record.SessionID = sessionID.String
	record.Branch = branch.String
	record.WorktreePath = worktreePath.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	if completedAt.Valid {
		record.CompletedAt = completedAt.Time.Format(time.RFC3339)
	}
	return record, nil
}

// Ensure TaskRepository implements the interface
var _ secondary.TaskRepository = (*TaskRepository)(nil)
