package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/foreman/internal/core/retry"
	"github.com/example/foreman/internal/ports/secondary"
)

// JobKindRetry is the scheduled-job kind for worker retries.
const JobKindRetry = "retry"

// RetryJobPayload is the JSON payload of a retry job.
type RetryJobPayload struct {
	TaskID      string `json:"taskId"`
	PhaseNumber int    `json:"phase"`
}

// JobScheduler is the slice of the durable scheduler the services use.
type JobScheduler interface {
	// Schedule persists the job and arms its timer for delay from now.
	Schedule(ctx context.Context, job *secondary.ScheduledJobRecord, delay time.Duration) error

	// Cancel stops and removes the job with the given key.
	Cancel(ctx context.Context, key string) error
}

// RetryOutcome reports what the retry manager decided for one failure.
type RetryOutcome struct {
	AttemptCount int
	Delay        time.Duration
	Exhausted    bool
}

// RetryManager owns per-task retry state and the durable timers behind
// it. Failures are keyed by the full (run, phase, task) triple, so the
// same task ID in different phases retries independently.
type RetryManager struct {
	retryRepo secondary.RetryStateRepository
	jobs      JobScheduler
	policy    retry.Policy
}

// NewRetryManager creates a new RetryManager with injected dependencies.
func NewRetryManager(retryRepo secondary.RetryStateRepository, jobs JobScheduler, policy retry.Policy) *RetryManager {
	return &RetryManager{
		retryRepo: retryRepo,
		jobs:      jobs,
		policy:    policy,
	}
}

// HandleFailure records one failed attempt. Unless the budget is spent it
// schedules a durable retry timer and reports the delay; on exhaustion
// the caller escalates.
func (m *RetryManager) HandleFailure(ctx context.Context, runID string, phaseNumber int, taskID, errMsg string) (*RetryOutcome, error) {
	state, err := m.loadState(ctx, runID, phaseNumber, taskID)
	if err != nil {
		return nil, err
	}

	delay, exhausted := retry.RecordFailure(state, time.Now().UTC(), errMsg)
	if err := m.saveState(ctx, state); err != nil {
		return nil, err
	}

	outcome := &RetryOutcome{
		AttemptCount: len(state.Attempts),
		Delay:        delay,
		Exhausted:    exhausted,
	}
	if exhausted {
		return outcome, nil
	}

	payload, err := json.Marshal(RetryJobPayload{TaskID: taskID, PhaseNumber: phaseNumber})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal retry payload: %w", err)
	}
	job := &secondary.ScheduledJobRecord{
		Key:     retry.StepKey(runID, phaseNumber, taskID),
		Kind:    JobKindRetry,
		RunID:   runID,
		Payload: string(payload),
	}
	if err := m.jobs.Schedule(ctx, job, delay); err != nil {
		return nil, fmt.Errorf("failed to schedule retry: %w", err)
	}
	return outcome, nil
}

// HandleSuccess clears retry state and cancels any pending timer after a
// task finally succeeds.
func (m *RetryManager) HandleSuccess(ctx context.Context, runID string, phaseNumber int, taskID string) error {
	if err := m.jobs.Cancel(ctx, retry.StepKey(runID, phaseNumber, taskID)); err != nil {
		return fmt.Errorf("failed to cancel retry timer: %w", err)
	}
	if err := m.retryRepo.Clear(ctx, runID, phaseNumber, taskID); err != nil {
		return fmt.Errorf("failed to clear retry state: %w", err)
	}
	return nil
}

// AttemptCount returns the recorded attempts for a task, zero when no
// state exists.
func (m *RetryManager) AttemptCount(ctx context.Context, runID string, phaseNumber int, taskID string) (int, error) {
	record, err := m.retryRepo.Get(ctx, runID, phaseNumber, taskID)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}
	return len(record.Attempts), nil
}

func (m *RetryManager) loadState(ctx context.Context, runID string, phaseNumber int, taskID string) (*retry.State, error) {
	record, err := m.retryRepo.Get(ctx, runID, phaseNumber, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load retry state: %w", err)
	}
	if record == nil {
		return &retry.State{
			RunID:       runID,
			PhaseNumber: phaseNumber,
			TaskID:      taskID,
			Policy:      m.policy,
			Status:      retry.StatusActive,
		}, nil
	}
	return recordToRetryState(record), nil
}

func (m *RetryManager) saveState(ctx context.Context, state *retry.State) error {
	if err := m.retryRepo.Save(ctx, retryStateToRecord(state)); err != nil {
		return fmt.Errorf("failed to save retry state: %w", err)
	}
	return nil
}

func recordToRetryState(r *secondary.RetryStateRecord) *retry.State {
	state := &retry.State{
		RunID:       r.RunID,
		PhaseNumber: r.PhaseNumber,
		TaskID:      r.TaskID,
		Status:      retry.Status(r.Status),
		Policy: retry.Policy{
			MaxAttempts: r.MaxAttempts,
			BaseDelay:   time.Duration(r.BaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(r.MaxDelayMs) * time.Millisecond,
		},
	}
	for _, a := range r.Attempts {
		at, _ := time.Parse(time.RFC3339, a.At)
		state.Attempts = append(state.Attempts, retry.Attempt{At: at, Success: a.Success, Error: a.Error})
	}
	return state
}

func retryStateToRecord(s *retry.State) *secondary.RetryStateRecord {
	record := &secondary.RetryStateRecord{
		RunID:       s.RunID,
		PhaseNumber: s.PhaseNumber,
		TaskID:      s.TaskID,
		Status:      string(s.Status),
		MaxAttempts: s.Policy.MaxAttempts,
		BaseDelayMs: int64(s.Policy.BaseDelay / time.Millisecond),
		MaxDelayMs:  int64(s.Policy.MaxDelay / time.Millisecond),
	}
	for _, a := range s.Attempts {
		record.Attempts = append(record.Attempts, secondary.RetryAttemptRecord{
			At:      a.At.Format(time.RFC3339),
			Success: a.Success,
			Error:   a.Error,
		})
	}
	return record
}
