package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/foreman/internal/core/phase"
	"github.com/example/foreman/internal/core/retry"
	"github.com/example/foreman/internal/core/review"
	"github.com/example/foreman/internal/core/taskgraph"
	"github.com/example/foreman/internal/locks"
	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/ports/secondary"
)

// CallbackServiceImpl implements the CallbackService interface. It is the
// engine's event loop: every inbound hook lands here and every phase
// transition starts here.
type CallbackServiceImpl struct {
	runRepo        secondary.RunRepository
	taskRepo       secondary.TaskRepository
	phaseRepo      secondary.PhaseStateRepository
	escalationRepo secondary.EscalationRepository
	retry          *RetryManager
	merger         *PhaseMerger
	reviews        *ReviewChainEngine
	advancer       *PhaseAdvancer
	spawner        *WorkerScheduler
	activityLog    secondary.ActivityLog
	locks          *locks.Manager
	loadDef        PipelineLoader
}

// NewCallbackService creates a new CallbackService with injected dependencies.
func NewCallbackService(runRepo secondary.RunRepository, taskRepo secondary.TaskRepository, phaseRepo secondary.PhaseStateRepository, escalationRepo secondary.EscalationRepository, retryMgr *RetryManager, merger *PhaseMerger, reviews *ReviewChainEngine, advancer *PhaseAdvancer, spawner *WorkerScheduler, activityLog secondary.ActivityLog, lockMgr *locks.Manager, loadDef PipelineLoader) *CallbackServiceImpl {
	return &CallbackServiceImpl{
		runRepo:        runRepo,
		taskRepo:       taskRepo,
		phaseRepo:      phaseRepo,
		escalationRepo: escalationRepo,
		retry:          retryMgr,
		merger:         merger,
		reviews:        reviews,
		advancer:       advancer,
		spawner:        spawner,
		activityLog:    activityLog,
		locks:          lockMgr,
		loadDef:        loadDef,
	}
}

// HandleTaskCompletion processes one worker's terminal report. All
// barrier mutations for a (run, phase) run under that pair's lock, so
// concurrent callbacks from sibling workers serialize here.
func (s *CallbackServiceImpl) HandleTaskCompletion(ctx context.Context, req primary.TaskCompletionRequest) (*primary.TaskCompletionResponse, error) {
	run, err := s.runRepo.GetByID(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	if run.Status != primary.RunStatusRunning {
		return &primary.TaskCompletionResponse{
			Status:  primary.StatusContinue,
			Message: fmt.Sprintf("run %s is %s; completion ignored", run.ID, run.Status),
		}, nil
	}
	if req.PhaseNumber != run.CurrentPhase {
		return &primary.TaskCompletionResponse{
			Status:  primary.StatusContinue,
			Message: fmt.Sprintf("stale completion for phase %d (run is at phase %d)", req.PhaseNumber, run.CurrentPhase),
		}, nil
	}

	var resp *primary.TaskCompletionResponse
	err = s.locks.Do(phaseKey(run.ID, req.PhaseNumber), func() error {
		var innerErr error
		if req.Success {
			resp, innerErr = s.handleSuccess(ctx, run, req)
		} else {
			resp, innerErr = s.handleFailure(ctx, run, req)
		}
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *CallbackServiceImpl) handleFailure(ctx context.Context, run *secondary.RunRecord, req primary.TaskCompletionRequest) (*primary.TaskCompletionResponse, error) {
	_ = s.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityWorkerFailed,
		Message: fmt.Sprintf("worker %s failed: %s", req.TaskID, req.Error),
		Fields:  map[string]any{"runId": run.ID, "phase": req.PhaseNumber, "task": req.TaskID},
	})

	outcome, err := s.retry.HandleFailure(ctx, run.ID, req.PhaseNumber, req.TaskID, req.Error)
	if err != nil {
		return nil, err
	}

	if !outcome.Exhausted {
		_ = s.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
			Type:    secondary.ActivityRetryScheduled,
			Message: fmt.Sprintf("retrying %s in %s (attempt %d)", req.TaskID, outcome.Delay, outcome.AttemptCount),
			Fields:  map[string]any{"runId": run.ID, "phase": req.PhaseNumber, "task": req.TaskID},
		})
		return &primary.TaskCompletionResponse{
			Status:         primary.StatusRetryScheduled,
			RetryInSeconds: int(outcome.Delay.Seconds()),
			AttemptCount:   outcome.AttemptCount,
			Message:        fmt.Sprintf("retry %d scheduled in %s", outcome.AttemptCount, outcome.Delay),
		}, nil
	}

	// A redelivered failure for an already-exhausted task reports the
	// existing escalation instead of opening another one.
	if existing, err := s.openTaskEscalation(ctx, run.ID, req.PhaseNumber, req.TaskID); err != nil {
		return nil, err
	} else if existing != nil {
		return &primary.TaskCompletionResponse{
			Status:       primary.StatusEscalated,
			AttemptCount: existing.AttemptCount,
			EscalationID: existing.ID,
			Message:      fmt.Sprintf("already escalated as %s", existing.ID),
		}, nil
	}

	_ = s.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityRetryExhausted,
		Message: fmt.Sprintf("task %s exhausted its %d attempts", req.TaskID, outcome.AttemptCount),
		Fields:  map[string]any{"runId": run.ID, "phase": req.PhaseNumber, "task": req.TaskID},
	})

	escID, err := s.escalateTask(ctx, run, req.PhaseNumber, req.TaskID, fmt.Sprintf("retry budget exhausted: %s", req.Error), primary.SeverityMedium, outcome.AttemptCount)
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.UpdateStatus(ctx, run.ID, req.PhaseNumber, req.TaskID, string(taskgraph.StatusFailed), true); err != nil {
		return nil, err
	}
	// The barrier still gets its entry; a phase with failed workers
	// completes as complete-with-failures instead of hanging.
	if err := s.phaseRepo.RecordResult(ctx, run.ID, req.PhaseNumber, secondary.WorkerResultRecord{
		WorkerID: req.TaskID,
		Status:   string(phase.StatusFailed),
		Error:    req.Error,
	}); err != nil {
		return nil, err
	}

	return &primary.TaskCompletionResponse{
		Status:       primary.StatusEscalated,
		AttemptCount: outcome.AttemptCount,
		EscalationID: escID,
		Message:      fmt.Sprintf("escalated as %s after %d attempts", escID, outcome.AttemptCount),
	}, nil
}

func (s *CallbackServiceImpl) handleSuccess(ctx context.Context, run *secondary.RunRecord, req primary.TaskCompletionRequest) (*primary.TaskCompletionResponse, error) {
	state, err := s.loadPhaseState(ctx, run.ID, req.PhaseNumber)
	if err != nil {
		return nil, err
	}

	// Clear retry state and resolve exhaustion escalations before the
	// duplicate check: a success arriving after the retry budget was
	// exhausted finds a failed barrier entry already recorded for this
	// worker, but the escalation it caused must still auto-resolve.
	if err := s.retry.HandleSuccess(ctx, run.ID, req.PhaseNumber, req.TaskID); err != nil {
		return nil, err
	}
	resolved, err := s.escalationRepo.ResolveByTask(ctx, run.ID, req.PhaseNumber, req.TaskID, "task completed")
	if err != nil {
		return nil, err
	}
	for _, id := range resolved {
		_ = s.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
			Type:    secondary.ActivityEscalationAuto,
			Message: fmt.Sprintf("escalation %s auto-resolved by completion of %s", id, req.TaskID),
			Fields:  map[string]any{"runId": run.ID, "escalation": id},
		})
	}

	agg := phase.Record(state, req.TaskID, phase.Result{Status: phase.StatusCompleted, Output: req.Message})
	if agg.Duplicate {
		msg := "duplicate completion ignored"
		if len(resolved) > 0 {
			msg = fmt.Sprintf("late success for %s; resolved %s", req.TaskID, strings.Join(resolved, ", "))
		}
		return &primary.TaskCompletionResponse{
			Status:  primary.StatusContinue,
			Message: msg,
		}, nil
	}

	if err := s.taskRepo.UpdateStatus(ctx, run.ID, req.PhaseNumber, req.TaskID, string(taskgraph.StatusDone), true); err != nil {
		return nil, err
	}
	if err := s.phaseRepo.RecordResult(ctx, run.ID, req.PhaseNumber, secondary.WorkerResultRecord{
		WorkerID: req.TaskID,
		Status:   string(phase.StatusCompleted),
		Output:   req.Message,
	}); err != nil {
		return nil, err
	}

	_ = s.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityWorkerCompleted,
		Message: fmt.Sprintf("worker %s completed (%d/%d)", req.TaskID, agg.Recorded, agg.Expected),
		Fields:  map[string]any{"runId": run.ID, "phase": req.PhaseNumber, "task": req.TaskID},
	})

	if !agg.Complete {
		// Completion may have unblocked dependent tasks.
		def, err := s.loadDef(run.RepoDir)
		if err != nil {
			return nil, err
		}
		phaseDef, err := def.Phase(req.PhaseNumber)
		if err != nil {
			return nil, err
		}
		spawned, err := s.spawner.SpawnReady(ctx, run, req.PhaseNumber, phaseDef.MaxWorkers)
		if err != nil {
			return nil, err
		}
		return &primary.TaskCompletionResponse{
			Status:         primary.StatusContinue,
			SpawnedWorkers: spawned,
			Message:        fmt.Sprintf("%d/%d workers done", agg.Recorded, agg.Expected),
		}, nil
	}

	return s.completePhase(ctx, run, state, agg)
}

// completePhase runs once the barrier is satisfied: merge, review, and
// advancement, in that order.
func (s *CallbackServiceImpl) completePhase(ctx context.Context, run *secondary.RunRecord, state *phase.State, agg phase.Aggregate) (*primary.TaskCompletionResponse, error) {
	_ = s.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityPhaseComplete,
		Message: fmt.Sprintf("phase %d barrier satisfied (%d workers)", state.PhaseNumber, agg.Expected),
		Fields:  map[string]any{"runId": run.ID, "phase": state.PhaseNumber},
	})

	if !agg.AllSucceeded {
		return &primary.TaskCompletionResponse{
			Status:  primary.StatusPhaseCompleteFailures,
			Message: "phase complete with failed workers; awaiting escalation resolution",
		}, nil
	}

	def, err := s.loadDef(run.RepoDir)
	if err != nil {
		return nil, err
	}
	phaseDef, err := def.Phase(state.PhaseNumber)
	if err != nil {
		return nil, err
	}

	if !phaseDef.MergeEnabled() {
		result, err := s.advancer.Advance(ctx, run)
		if err != nil {
			return nil, err
		}
		return &primary.TaskCompletionResponse{
			Status:           primary.StatusPhaseAdvanced,
			SpawnedWorkers:   result.SpawnedWorkers,
			NextPhase:        result.NextPhase,
			PipelineComplete: result.PipelineComplete,
			Message:          result.Message,
		}, nil
	}

	outcome, err := s.merger.MergePhase(ctx, run.ProjectName, state, phaseDef.Name)
	if err != nil {
		return nil, err
	}
	if outcome.Conflicted {
		escID, err := s.escalateTask(ctx, run, state.PhaseNumber, "", fmt.Sprintf("merge conflict in %s (files: %v)", outcome.ConflictBranch, outcome.ConflictFiles), primary.SeverityMedium, 0)
		if err != nil {
			return nil, err
		}
		return &primary.TaskCompletionResponse{
			Status:       primary.StatusPhaseConflict,
			EscalationID: escID,
			PhaseBranch:  outcome.PhaseBranch,
			Message:      fmt.Sprintf("merge conflict on %s; escalated as %s", outcome.ConflictBranch, escID),
		}, nil
	}
	if outcome.FailedBranch != "" {
		escID, err := s.escalateTask(ctx, run, state.PhaseNumber, "", fmt.Sprintf("merge of %s failed: %s", outcome.FailedBranch, outcome.FailureReason), primary.SeverityMedium, 0)
		if err != nil {
			return nil, err
		}
		return &primary.TaskCompletionResponse{
			Status:       primary.StatusPhaseMergeFailed,
			EscalationID: escID,
			PhaseBranch:  outcome.PhaseBranch,
			Message:      fmt.Sprintf("merge failed on %s; escalated as %s", outcome.FailedBranch, escID),
		}, nil
	}

	state.PhaseBranch = outcome.PhaseBranch

	if len(phaseDef.Review) > 0 {
		if err := s.reviews.StartChain(ctx, run, state, phaseDef.Review); err != nil {
			return nil, err
		}
		return &primary.TaskCompletionResponse{
			Status:         primary.StatusPhaseMerged,
			PhaseBranch:    outcome.PhaseBranch,
			MergedBranches: outcome.Merged,
			Message:        fmt.Sprintf("phase branch %s under review by %s", outcome.PhaseBranch, phaseDef.Review[0]),
		}, nil
	}

	// No review chain: fold the phase branch into base and advance.
	baseOutcome, err := s.merger.MergeToBase(ctx, run.ProjectName, state)
	if err != nil {
		return nil, err
	}
	if baseOutcome.Conflicted || baseOutcome.FailedBranch != "" {
		escID, err := s.escalateTask(ctx, run, state.PhaseNumber, "", fmt.Sprintf("merge of %s into %s failed", state.PhaseBranch, state.BaseBranch), primary.SeverityHigh, 0)
		if err != nil {
			return nil, err
		}
		return &primary.TaskCompletionResponse{
			Status:       primary.StatusPhaseMergeFailed,
			EscalationID: escID,
			PhaseBranch:  outcome.PhaseBranch,
			Message:      fmt.Sprintf("base merge failed; escalated as %s", escID),
		}, nil
	}

	result, err := s.advancer.Advance(ctx, run)
	if err != nil {
		return nil, err
	}
	status := primary.StatusPhaseMergedAdvanced
	if result.PipelineComplete {
		status = primary.StatusPhaseMerged
	}
	return &primary.TaskCompletionResponse{
		Status:           status,
		PhaseBranch:      outcome.PhaseBranch,
		MergedBranches:   outcome.Merged,
		SpawnedWorkers:   result.SpawnedWorkers,
		NextPhase:        result.NextPhase,
		PipelineComplete: result.PipelineComplete,
		Message:          result.Message,
	}, nil
}

// HandleReviewDecision advances the review chain with one decision.
func (s *CallbackServiceImpl) HandleReviewDecision(ctx context.Context, req primary.ReviewDecisionRequest) (*primary.ReviewDecisionResponse, error) {
	decision, err := review.ParseDecision(req.Decision, req.Comments, req.FixInstructions, req.EscalationReason)
	if err != nil {
		return nil, err
	}

	run, err := s.runRepo.GetByID(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	if run.Status != primary.RunStatusRunning {
		return nil, fmt.Errorf("run %s is %s; decisions are no longer accepted", run.ID, run.Status)
	}

	var resp *primary.ReviewDecisionResponse
	err = s.locks.Do(phaseKey(run.ID, req.PhaseNumber), func() error {
		outcome, err := s.reviews.HandleDecision(ctx, run, req.PhaseNumber, req.Role, decision)
		if err != nil {
			return err
		}

		switch outcome.Transition.Kind {
		case review.TransitionAdvanced:
			resp = &primary.ReviewDecisionResponse{
				ChainAdvanced: true,
				NextReviewer:  outcome.Transition.NextReviewer,
				EscalationID:  outcome.EscalationID,
				Message:       fmt.Sprintf("awaiting %s review", outcome.Transition.NextReviewer),
			}
		case review.TransitionFix:
			resp = &primary.ReviewDecisionResponse{
				FixerSpawned: outcome.FixerSpawned,
				FixAttempt:   outcome.FixAttempt,
				EscalationID: outcome.EscalationID,
				Message:      fmt.Sprintf("fixer spawned (attempt %d)", outcome.FixAttempt),
			}
		case review.TransitionEscalate:
			resp = &primary.ReviewDecisionResponse{
				ForcedEscalation: outcome.Transition.Forced,
				EscalationID:     outcome.EscalationID,
				Message:          fmt.Sprintf("escalated as %s", outcome.EscalationID),
			}
		case review.TransitionComplete:
			var err error
			resp, err = s.completeReview(ctx, run, req.PhaseNumber)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// completeReview merges the approved phase branch into base and advances.
func (s *CallbackServiceImpl) completeReview(ctx context.Context, run *secondary.RunRecord, phaseNumber int) (*primary.ReviewDecisionResponse, error) {
	state, err := s.loadPhaseState(ctx, run.ID, phaseNumber)
	if err != nil {
		return nil, err
	}

	outcome, err := s.merger.MergeToBase(ctx, run.ProjectName, state)
	if err != nil {
		return nil, err
	}
	if outcome.Conflicted || outcome.FailedBranch != "" {
		reason := fmt.Sprintf("approved branch %s failed to merge into %s", state.PhaseBranch, state.BaseBranch)
		escID, err := s.escalateTask(ctx, run, phaseNumber, "", reason, primary.SeverityHigh, 0)
		if err != nil {
			return nil, err
		}
		return &primary.ReviewDecisionResponse{
			EscalationID: escID,
			Message:      fmt.Sprintf("base merge failed; escalated as %s", escID),
		}, nil
	}

	result, err := s.advancer.Advance(ctx, run)
	if err != nil {
		return nil, err
	}
	return &primary.ReviewDecisionResponse{
		MergedBranch:     state.PhaseBranch,
		Advanced:         result.Advanced,
		NextPhase:        result.NextPhase,
		PipelineComplete: result.PipelineComplete,
		Message:          result.Message,
	}, nil
}

// HandleFixCompletion resumes the chain after a fixer finishes.
func (s *CallbackServiceImpl) HandleFixCompletion(ctx context.Context, req primary.FixCompletionRequest) (*primary.FixCompletionResponse, error) {
	run, err := s.runRepo.GetByID(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	if run.Status != primary.RunStatusRunning {
		return nil, fmt.Errorf("run %s is %s; fix reports are no longer accepted", run.ID, run.Status)
	}

	var resp *primary.FixCompletionResponse
	err = s.locks.Do(phaseKey(run.ID, req.PhaseNumber), func() error {
		state, err := s.loadPhaseState(ctx, run.ID, req.PhaseNumber)
		if err != nil {
			return err
		}
		detail := req.Summary
		if req.Error != "" {
			detail = req.Error
		}
		result, err := s.reviews.HandleFixCompletion(ctx, run, state, req.Status == "completed", detail)
		if err != nil {
			return err
		}
		resp = &primary.FixCompletionResponse{
			ReviewerSpawned: result.ReviewerSpawned,
			Reviewer:        result.Reviewer,
			FixerRespawned:  result.FixerRespawned,
			FixAttempt:      result.FixAttempt,
			EscalationID:    result.EscalationID,
		}
		switch {
		case result.ReviewerSpawned:
			resp.Message = fmt.Sprintf("re-review started with %s", result.Reviewer)
		case result.FixerRespawned:
			resp.Message = fmt.Sprintf("fixer respawned (attempt %d)", result.FixAttempt)
		default:
			resp.Message = fmt.Sprintf("escalated as %s", result.EscalationID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *CallbackServiceImpl) loadPhaseState(ctx context.Context, runID string, phaseNumber int) (*phase.State, error) {
	record, err := s.phaseRepo.Get(ctx, runID, phaseNumber)
	if err != nil {
		return nil, err
	}
	return phaseRecordToState(record), nil
}

func (s *CallbackServiceImpl) escalateTask(ctx context.Context, run *secondary.RunRecord, phaseNumber int, taskID, reason, severity string, attempts int) (string, error) {
	id, err := s.escalationRepo.GetNextID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to allocate escalation id: %w", err)
	}
	record := &secondary.EscalationRecord{
		ID:           id,
		RunID:        run.ID,
		PhaseNumber:  phaseNumber,
		TaskID:       taskID,
		Reason:       reason,
		AttemptCount: attempts,
		MaxAttempts:  retry.DefaultPolicy().MaxAttempts,
		Severity:     severity,
	}
	if err := s.escalationRepo.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to create escalation: %w", err)
	}
	_ = s.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityEscalated,
		Message: fmt.Sprintf("escalation %s: %s", id, reason),
		Fields:  map[string]any{"runId": run.ID, "phase": phaseNumber, "escalation": id},
	})
	return id, nil
}

// openTaskEscalation finds the open escalation for a task, if any.
func (s *CallbackServiceImpl) openTaskEscalation(ctx context.Context, runID string, phaseNumber int, taskID string) (*secondary.EscalationRecord, error) {
	open, err := s.escalationRepo.List(ctx, secondary.EscalationFilters{
		RunID:  runID,
		TaskID: taskID,
		Status: "open",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check open escalations: %w", err)
	}
	for _, e := range open {
		if e.PhaseNumber == phaseNumber {
			return e, nil
		}
	}
	return nil, nil
}

func phaseKey(runID string, phaseNumber int) string {
	return fmt.Sprintf("phase:%s:%d", runID, phaseNumber)
}

func phaseRecordToState(r *secondary.PhaseStateRecord) *phase.State {
	state := &phase.State{
		RunID:       r.RunID,
		PhaseNumber: r.PhaseNumber,
		Expected:    r.Expected,
		Results:     make(map[string]phase.Result, len(r.Results)),
		PhaseBranch: r.PhaseBranch,
		BaseBranch:  r.BaseBranch,
		RepoDir:     r.RepoDir,
	}
	for _, res := range r.Results {
		state.Results[res.WorkerID] = phase.Result{
			Status: phase.WorkerStatus(res.Status),
			Output: res.Output,
			Error:  res.Error,
		}
	}
	return state
}

// Ensure CallbackServiceImpl implements the interface
var _ primary.CallbackService = (*CallbackServiceImpl)(nil)
