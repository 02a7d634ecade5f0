package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/foreman/internal/ports/secondary"
)

// JobRepository implements secondary.JobRepository with SQLite. It backs
// the durable job scheduler: pending retry timers survive restarts here.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new SQLite job repository.
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Upsert persists a scheduled job, replacing any job with the same key.
func (r *JobRepository) Upsert(ctx context.Context, job *secondary.ScheduledJobRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (key, kind, run_id, payload, fire_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, run_id = excluded.run_id, payload = excluded.payload, fire_at = excluded.fire_at`,
		job.Key, job.Kind, job.RunID, job.Payload, job.FireAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert scheduled job: %w", err)
	}
	return nil
}

// Delete removes a job by its key. Deleting an absent key is a no-op.
func (r *JobRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM scheduled_jobs WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled job: %w", err)
	}
	return nil
}

// ListPending retrieves all scheduled jobs ordered by fire time.
func (r *JobRepository) ListPending(ctx context.Context) ([]*secondary.ScheduledJobRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT key, kind, run_id, payload, fire_at, created_at FROM scheduled_jobs ORDER BY fire_at",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*secondary.ScheduledJobRecord
	for rows.Next() {
		record := &secondary.ScheduledJobRecord{}
		var fireAt time.Time
		var createdAt time.Time
		if err := rows.Scan(&record.Key, &record.Kind, &record.RunID, &record.Payload, &fireAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan scheduled job: %w", err)
		}
		record.FireAt = fireAt.Format(time.RFC3339)
		record.CreatedAt = createdAt.Format(time.RFC3339)
		jobs = append(jobs, record)
	}
	return jobs, rows.Err()
}

// Ensure JobRepository implements the interface
var _ secondary.JobRepository = (*JobRepository)(nil)
