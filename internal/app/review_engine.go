package app

import (
	"context"
	"fmt"

	"github.com/example/foreman/internal/core/phase"
	"github.com/example/foreman/internal/core/review"
	"github.com/example/foreman/internal/ports/primary"
	"github.com/example/foreman/internal/ports/secondary"
)

// ReviewChainEngine drives a phase's review chain: persisting chain
// state, spawning reviewers and fixers, and funnelling everything that
// cannot proceed into escalations.
type ReviewChainEngine struct {
	reviewRepo     secondary.ReviewChainRepository
	escalationRepo secondary.EscalationRepository
	phaseRepo      secondary.PhaseStateRepository
	gateway        secondary.AgentGateway
	activityLog    secondary.ActivityLog
}

// NewReviewChainEngine creates a new ReviewChainEngine with injected dependencies.
func NewReviewChainEngine(reviewRepo secondary.ReviewChainRepository, escalationRepo secondary.EscalationRepository, phaseRepo secondary.PhaseStateRepository, gateway secondary.AgentGateway, activityLog secondary.ActivityLog) *ReviewChainEngine {
	return &ReviewChainEngine{
		reviewRepo:     reviewRepo,
		escalationRepo: escalationRepo,
		phaseRepo:      phaseRepo,
		gateway:        gateway,
		activityLog:    activityLog,
	}
}

// DecisionOutcome reports what the engine did with one review decision.
type DecisionOutcome struct {
	Transition   review.Transition
	EscalationID string
	FixerSpawned bool
	FixAttempt   int
}

// StartChain initializes the review chain for a merged phase and spawns
// the first reviewer. A spawn failure escalates immediately; the chain
// must never silently stall.
func (e *ReviewChainEngine) StartChain(ctx context.Context, run *secondary.RunRecord, state *phase.State, roles []string) error {
	record := &secondary.ReviewChainRecord{
		RunID:       run.ID,
		PhaseNumber: state.PhaseNumber,
		Chain:       roles,
		Status:      secondary.ReviewChainAwaiting,
	}
	if err := e.reviewRepo.Init(ctx, record); err != nil {
		return fmt.Errorf("failed to initialize review chain: %w", err)
	}
	return e.spawnReviewer(ctx, run, state.PhaseNumber, roles[0], state.PhaseBranch, state.RepoDir)
}

// HandleDecision applies one reviewer decision. For advanced and fix
// transitions the follow-up agent is spawned here; a complete transition
// is returned for the caller to merge and advance on; escalations are
// created here.
func (e *ReviewChainEngine) HandleDecision(ctx context.Context, run *secondary.RunRecord, phaseNumber int, role string, d review.Decision) (*DecisionOutcome, error) {
	record, err := e.reviewRepo.Get(ctx, run.ID, phaseNumber)
	if err != nil {
		return nil, err
	}
	if record.Status == secondary.ReviewChainEscalated {
		return nil, fmt.Errorf("review chain for run %s phase %d is escalated; resolve the escalation first", run.ID, phaseNumber)
	}
	if record.Status == secondary.ReviewChainFixing {
		return nil, fmt.Errorf("review chain for run %s phase %d is waiting on a fixer", run.ID, phaseNumber)
	}

	chain := recordToChainState(record)
	transition, err := review.Apply(chain, role, d)
	if err != nil {
		return nil, err
	}

	outcome := &DecisionOutcome{Transition: transition, FixAttempt: chain.FixAttempts}

	_ = e.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityReviewDecision,
		Message: fmt.Sprintf("reviewer %s decided %s on phase %d", role, d.Kind, phaseNumber),
		Fields: map[string]any{
			"runId":    run.ID,
			"phase":    phaseNumber,
			"role":     role,
			"decision": string(d.Kind),
		},
	})

	states, err := e.stateForTransition(ctx, run, phaseNumber, record, chain, transition, outcome)
	if err != nil {
		return nil, err
	}
	applyChainState(record, chain, states)
	if err := e.reviewRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist review chain: %w", err)
	}
	return outcome, nil
}

// FixResult resumes the chain after a fixer reports.
type FixResult struct {
	ReviewerSpawned bool
	Reviewer        string
	FixerRespawned  bool
	FixAttempt      int
	EscalationID    string
}

// HandleFixCompletion restarts review after a successful fix, respawns
// the fixer while budget remains, and escalates past the budget.
func (e *ReviewChainEngine) HandleFixCompletion(ctx context.Context, run *secondary.RunRecord, state *phase.State, success bool, detail string) (*FixResult, error) {
	record, err := e.reviewRepo.Get(ctx, run.ID, state.PhaseNumber)
	if err != nil {
		return nil, err
	}
	if record.Status != secondary.ReviewChainFixing {
		return nil, fmt.Errorf("review chain for run %s phase %d is not waiting on a fixer", run.ID, state.PhaseNumber)
	}

	result := &FixResult{FixAttempt: record.FixAttempts}

	if success {
		// The chain restarts from the first reviewer over the fixed branch.
		reviewer := record.Chain[0]
		if err := e.spawnReviewer(ctx, run, state.PhaseNumber, reviewer, state.PhaseBranch, state.RepoDir); err != nil {
			escID, escErr := e.escalate(ctx, run, state.PhaseNumber, reviewer, "", fmt.Sprintf("failed to spawn reviewer %s after fix: %v", reviewer, err), primary.SeverityHigh, record.FixAttempts)
			if escErr != nil {
				return nil, escErr
			}
			record.Status = secondary.ReviewChainEscalated
			result.EscalationID = escID
		} else {
			record.Status = secondary.ReviewChainAwaiting
			result.ReviewerSpawned = true
			result.Reviewer = reviewer
		}
		if err := e.reviewRepo.Update(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to persist review chain: %w", err)
		}
		return result, nil
	}

	// Fixer failed. A failed fix spends budget the same way a fix request
	// does; past the budget the phase goes to a human.
	record.FixAttempts++
	result.FixAttempt = record.FixAttempts
	if record.FixAttempts >= review.MaxFixAttempts {
		escID, err := e.escalate(ctx, run, state.PhaseNumber, "fixer", "", fmt.Sprintf("fix attempts exhausted after fixer failure: %s", detail), primary.SeverityMedium, record.FixAttempts)
		if err != nil {
			return nil, err
		}
		record.Status = secondary.ReviewChainEscalated
		result.EscalationID = escID
	} else {
		if err := e.spawnFixer(ctx, run, state.PhaseNumber, state.PhaseBranch, state.RepoDir, record.LastInstruction); err != nil {
			escID, escErr := e.escalate(ctx, run, state.PhaseNumber, "fixer", "", fmt.Sprintf("failed to respawn fixer: %v", err), primary.SeverityHigh, record.FixAttempts)
			if escErr != nil {
				return nil, escErr
			}
			record.Status = secondary.ReviewChainEscalated
			result.EscalationID = escID
		} else {
			result.FixerRespawned = true
		}
	}
	if err := e.reviewRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist review chain: %w", err)
	}
	return result, nil
}

// chainStates carries the post-transition status decision back to the
// single Update call in HandleDecision.
type chainStates struct {
	status string
}

func (e *ReviewChainEngine) stateForTransition(ctx context.Context, run *secondary.RunRecord, phaseNumber int, record *secondary.ReviewChainRecord, chain *review.ChainState, transition review.Transition, outcome *DecisionOutcome) (chainStates, error) {
	switch transition.Kind {
	case review.TransitionAdvanced:
		phaseState, err := e.phaseBranchFor(ctx, run, phaseNumber)
		if err != nil {
			return chainStates{}, err
		}
		if err := e.spawnReviewer(ctx, run, phaseNumber, transition.NextReviewer, phaseState.branch, phaseState.repoDir); err != nil {
			escID, escErr := e.escalate(ctx, run, phaseNumber, transition.NextReviewer, "", fmt.Sprintf("failed to spawn reviewer %s: %v", transition.NextReviewer, err), primary.SeverityHigh, chain.FixAttempts)
			if escErr != nil {
				return chainStates{}, escErr
			}
			outcome.EscalationID = escID
			return chainStates{status: secondary.ReviewChainEscalated}, nil
		}
		return chainStates{status: secondary.ReviewChainAwaiting}, nil

	case review.TransitionComplete:
		return chainStates{status: secondary.ReviewChainComplete}, nil

	case review.TransitionFix:
		phaseState, err := e.phaseBranchFor(ctx, run, phaseNumber)
		if err != nil {
			return chainStates{}, err
		}
		if err := e.spawnFixer(ctx, run, phaseNumber, phaseState.branch, phaseState.repoDir, transition.Instructions); err != nil {
			escID, escErr := e.escalate(ctx, run, phaseNumber, "fixer", "", fmt.Sprintf("failed to spawn fixer: %v", err), primary.SeverityHigh, chain.FixAttempts)
			if escErr != nil {
				return chainStates{}, escErr
			}
			outcome.EscalationID = escID
			return chainStates{status: secondary.ReviewChainEscalated}, nil
		}
		outcome.FixerSpawned = true
		return chainStates{status: secondary.ReviewChainFixing}, nil

	case review.TransitionEscalate:
		// A reviewer asking for a human is routine; blowing the fix
		// budget means the phase is stuck.
		severity := primary.SeverityLow
		if transition.Forced {
			severity = primary.SeverityMedium
		}
		escID, err := e.escalate(ctx, run, phaseNumber, "", "", transition.Reason, severity, chain.FixAttempts)
		if err != nil {
			return chainStates{}, err
		}
		outcome.EscalationID = escID
		return chainStates{status: secondary.ReviewChainEscalated}, nil

	default:
		return chainStates{}, fmt.Errorf("unknown transition kind %q", transition.Kind)
	}
}

// phaseRef is the branch and repo the reviewer or fixer works against.
type phaseRef struct {
	branch  string
	repoDir string
}

func (e *ReviewChainEngine) phaseBranchFor(ctx context.Context, run *secondary.RunRecord, phaseNumber int) (phaseRef, error) {
	state, err := e.phaseRepo.Get(ctx, run.ID, phaseNumber)
	if err != nil {
		return phaseRef{}, fmt.Errorf("failed to load phase state: %w", err)
	}
	return phaseRef{branch: state.PhaseBranch, repoDir: state.RepoDir}, nil
}

func (e *ReviewChainEngine) spawnReviewer(ctx context.Context, run *secondary.RunRecord, phaseNumber int, role, phaseBranch, repoDir string) error {
	_, err := e.gateway.Spawn(ctx, secondary.SpawnRequest{
		Role:        secondary.RoleReviewer,
		RunID:       run.ID,
		PhaseNumber: phaseNumber,
		ReviewRole:  role,
		Project:     run.ProjectName,
		WorkDir:     repoDir,
		Branch:      phaseBranch,
		Prompt:      reviewerPrompt(run.ID, phaseNumber, role, phaseBranch),
	})
	if err != nil {
		return err
	}
	_ = e.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityReviewerSpawned,
		Message: fmt.Sprintf("spawned %s reviewer for phase %d", role, phaseNumber),
		Fields:  map[string]any{"runId": run.ID, "phase": phaseNumber, "role": role},
	})
	return nil
}

func (e *ReviewChainEngine) spawnFixer(ctx context.Context, run *secondary.RunRecord, phaseNumber int, phaseBranch, repoDir, instructions string) error {
	_, err := e.gateway.Spawn(ctx, secondary.SpawnRequest{
		Role:        secondary.RoleFixer,
		RunID:       run.ID,
		PhaseNumber: phaseNumber,
		Project:     run.ProjectName,
		WorkDir:     repoDir,
		Branch:      phaseBranch,
		Prompt:      fixerPrompt(run.ID, phaseNumber, phaseBranch, instructions),
	})
	if err != nil {
		return err
	}
	_ = e.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityFixerSpawned,
		Message: fmt.Sprintf("spawned fixer for phase %d", phaseNumber),
		Fields:  map[string]any{"runId": run.ID, "phase": phaseNumber},
	})
	return nil
}

func (e *ReviewChainEngine) escalate(ctx context.Context, run *secondary.RunRecord, phaseNumber int, roleID, taskID, reason, severity string, attempts int) (string, error) {
	id, err := e.escalationRepo.GetNextID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to allocate escalation id: %w", err)
	}
	record := &secondary.EscalationRecord{
		ID:           id,
		RunID:        run.ID,
		PhaseNumber:  phaseNumber,
		RoleID:       roleID,
		TaskID:       taskID,
		Reason:       reason,
		AttemptCount: attempts,
		MaxAttempts:  review.MaxFixAttempts,
		Severity:     severity,
	}
	if err := e.escalationRepo.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to create escalation: %w", err)
	}
	_ = e.activityLog.Append(ctx, run.ProjectName, secondary.ActivityEntry{
		Type:    secondary.ActivityEscalated,
		Message: fmt.Sprintf("escalation %s: %s", id, reason),
		Fields:  map[string]any{"runId": run.ID, "phase": phaseNumber, "escalation": id},
	})
	return id, nil
}

func applyChainState(record *secondary.ReviewChainRecord, chain *review.ChainState, states chainStates) {
	record.CurrentIndex = chain.CurrentIndex
	record.Approvals = chain.Approvals
	record.FixAttempts = chain.FixAttempts
	record.LastInstruction = chain.LastInstruction
	if states.status != "" {
		record.Status = states.status
	}
}

func recordToChainState(r *secondary.ReviewChainRecord) *review.ChainState {
	return &review.ChainState{
		RunID:           r.RunID,
		PhaseNumber:     r.PhaseNumber,
		Chain:           r.Chain,
		CurrentIndex:    r.CurrentIndex,
		Approvals:       r.Approvals,
		FixAttempts:     r.FixAttempts,
		LastInstruction: r.LastInstruction,
	}
}
