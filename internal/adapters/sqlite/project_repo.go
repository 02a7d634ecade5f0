// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/foreman/internal/ports/secondary"
)

// ProjectRepository implements secondary.ProjectRepository with SQLite.
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new SQLite project repository.
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create persists a new project.
func (r *ProjectRepository) Create(ctx context.Context, project *secondary.ProjectRecord) error {
	status := project.Status
	if status == "" {
		status = "active"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (name, repo_dir, base_branch, current_phase, status, archived) VALUES (?, ?, ?, ?, ?, ?)`,
		project.Name, project.RepoDir, project.BaseBranch, project.CurrentPhase, status, project.Archived,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetByName retrieves a project by its name.
func (r *ProjectRepository) GetByName(ctx context.Context, name string) (*secondary.ProjectRecord, error) {
	record := &secondary.ProjectRecord{}
	var createdAt, updatedAt time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT name, repo_dir, base_branch, current_phase, status, archived, created_at, updated_at FROM projects WHERE name = ?`,
		name,
	).Scan(&record.Name, &record.RepoDir, &record.BaseBranch, &record.CurrentPhase, &record.Status, &record.Archived, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", name, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

// List retrieves projects, optionally including archived ones.
func (r *ProjectRepository) List(ctx context.Context, includeArchived bool) ([]*secondary.ProjectRecord, error) {
	query := `SELECT name, repo_dir, base_branch, current_phase, status, archived, created_at, updated_at FROM projects`
	if !includeArchived {
		query += " WHERE archived = 0"
	}
	query += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*secondary.ProjectRecord
	for rows.Next() {
		record := &secondary.ProjectRecord{}
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&record.Name, &record.RepoDir, &record.BaseBranch, &record.CurrentPhase, &record.Status, &record.Archived, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		record.CreatedAt = createdAt.Format(time.RFC3339)
		record.UpdatedAt = updatedAt.Format(time.RFC3339)
		projects = append(projects, record)
	}
	return projects, rows.Err()
}

// Update updates an existing project.
func (r *ProjectRepository) Update(ctx context.Context, project *secondary.ProjectRecord) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects SET repo_dir = ?, base_branch = ?, current_phase = ?, status = ?, archived = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?`,
		project.RepoDir, project.BaseBranch, project.CurrentPhase, project.Status, project.Archived, project.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireRow(result, "project", project.Name)
}

// SetPhase persists the project's current phase number.
func (r *ProjectRepository) SetPhase(ctx context.Context, name string, phase int) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE projects SET current_phase = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?",
		phase, name,
	)
	if err != nil {
		return fmt.Errorf("failed to set project phase: %w", err)
	}
	return requireRow(result, "project", name)
}

// SetStatus updates the project status.
func (r *ProjectRepository) SetStatus(ctx context.Context, name, status string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE projects SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?",
		status, name,
	)
	if err != nil {
		return fmt.Errorf("failed to set project status: %w", err)
	}
	return requireRow(result, "project", name)
}

// Archive marks a project archived.
func (r *ProjectRepository) Archive(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE projects SET archived = 1, updated_at = CURRENT_TIMESTAMP WHERE name = ?",
		name,
	)
	if err != nil {
		return fmt.Errorf("failed to archive project: %w", err)
	}
	return requireRow(result, "project", name)
}

// requireRow converts a zero-row update into a not-found error.
func requireRow(result sql.Result, entity, id string) error {
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s not found", entity, id)
	}
	return nil
}

// Ensure ProjectRepository implements the interface
var _ secondary.ProjectRepository = (*ProjectRepository)(nil)
