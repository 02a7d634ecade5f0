// Package retry contains the pure retry policy logic.
// Delay computation and exhaustion rules are pure functions; timer
// scheduling and persistence live in the shell (internal/scheduler,
// internal/adapters/sqlite).
package retry

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a retry record.
type Status string

const (
	// StatusActive means the task is still within its retry budget.
	StatusActive Status = "active"
	// StatusExhausted means the retry budget is spent; the caller must escalate.
	StatusExhausted Status = "exhausted"
)

// Policy bounds the retry behavior for a single task.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns the engine-wide default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   30 * time.Second,
		MaxDelay:    10 * time.Minute,
	}
}

// Attempt records one execution attempt of a task.
type Attempt struct {
	At      time.Time
	Success bool
	Error   string
}

// State aggregates the attempts for one task within one phase.
// The key is the full composite (RunID, PhaseNumber, TaskID); hashed or
// truncated surrogate keys collide between unrelated tasks and are not used.
type State struct {
	RunID       string
	PhaseNumber int
	TaskID      string
	Attempts    []Attempt
	Policy      Policy
	Status      Status
}

// StepKey builds the composite key identifying a task within a phase.
func StepKey(runID string, phaseNumber int, taskID string) string {
	return fmt.Sprintf("%s:p%d:%s", runID, phaseNumber, taskID)
}

// Key returns the composite step key for this state.
func (s *State) Key() string {
	return StepKey(s.RunID, s.PhaseNumber, s.TaskID)
}

// Delay computes the backoff delay before retry attempt n (1-based count
// of failures so far): min(base * 2^(n-1), max).
func Delay(p Policy, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// RecordFailure appends a failed attempt and returns the delay before the
// next retry. When the attempt count reaches MaxAttempts the state becomes
// exhausted and exhausted=true is returned; no retry should be scheduled.
// Attempts never grow past MaxAttempts.
func RecordFailure(s *State, at time.Time, errMsg string) (delay time.Duration, exhausted bool) {
	if s.Status == StatusExhausted {
		return 0, true
	}
	if len(s.Attempts) < s.Policy.MaxAttempts {
		s.Attempts = append(s.Attempts, Attempt{At: at, Success: false, Error: errMsg})
	}
	if len(s.Attempts) >= s.Policy.MaxAttempts {
		s.Status = StatusExhausted
		return 0, true
	}
	return Delay(s.Policy, len(s.Attempts)), false
}
