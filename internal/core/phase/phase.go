// Package phase contains the pure phase-barrier logic: aggregating
// terminal worker outcomes against the expected worker set for a
// (run, phase) pair. Recording is idempotent so duplicate completion
// callbacks never double-count.
package phase

// WorkerStatus is the terminal outcome reported for one worker.
type WorkerStatus string

const (
	// StatusCompleted means the worker finished successfully.
	StatusCompleted WorkerStatus = "completed"
	// StatusFailed means the worker failed terminally (including
	// retry exhaustion).
	StatusFailed WorkerStatus = "failed"
)

// Result is one worker's terminal outcome.
type Result struct {
	Status WorkerStatus
	Output string
	Error  string
}

// State is one barrier instance for a (run, phase) pair.
type State struct {
	RunID       string
	PhaseNumber int
	Expected    []string
	Results     map[string]Result
	PhaseBranch string
	BaseBranch  string
	RepoDir     string
}

// Aggregate summarizes barrier progress after a recording.
type Aggregate struct {
	Complete     bool
	AllSucceeded bool
	Recorded     int
	Expected     int
	Duplicate    bool
}

// Record stores a worker's terminal result and returns the updated
// aggregate. A workerId already present is a no-op returning the current
// aggregate with Duplicate set. Workers outside the expected set are
// ignored the same way.
func Record(s *State, workerID string, r Result) Aggregate {
	if s.Results == nil {
		s.Results = make(map[string]Result)
	}
	if _, seen := s.Results[workerID]; seen || !expects(s, workerID) {
		agg := Summarize(s)
		agg.Duplicate = true
		return agg
	}
	s.Results[workerID] = r
	return Summarize(s)
}

// Summarize computes the current aggregate without mutating state.
// Complete flips to true exactly when every expected worker has a
// terminal entry; AllSucceeded means no failed entries.
func Summarize(s *State) Aggregate {
	agg := Aggregate{Expected: len(s.Expected), AllSucceeded: true}
	for _, id := range s.Expected {
		r, ok := s.Results[id]
		if !ok {
			agg.AllSucceeded = agg.AllSucceeded && true
			continue
		}
		agg.Recorded++
		if r.Status == StatusFailed {
			agg.AllSucceeded = false
		}
	}
	agg.Complete = agg.Recorded == len(s.Expected) && len(s.Expected) > 0
	return agg
}

// SucceededWorkers returns the expected workers that completed
// successfully, in expected-set order. The merger folds their branches
// into the phase branch in this order.
func SucceededWorkers(s *State) []string {
	var out []string
	for _, id := range s.Expected {
		if r, ok := s.Results[id]; ok && r.Status == StatusCompleted {
			out = append(out, id)
		}
	}
	return out
}

func expects(s *State, workerID string) bool {
	for _, id := range s.Expected {
		if id == workerID {
			return true
		}
	}
	return false
}
