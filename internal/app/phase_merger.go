package app

import (
	"context"
	"fmt"

	"github.com/example/foreman/internal/core/phase"
	"github.com/example/foreman/internal/core/worktree"
	"github.com/example/foreman/internal/locks"
	"github.com/example/foreman/internal/ports/secondary"
)

// MergeOutcome reports one phase-merge attempt. Exactly one of the
// success, conflict, or failure shapes is populated.
type MergeOutcome struct {
	PhaseBranch    string
	Merged         []string
	Conflicted     bool
	ConflictBranch string
	ConflictFiles  []string
	FailedBranch   string
	FailureReason  string
}

// PhaseMerger folds succeeded worker branches into a fresh phase branch.
// Conflicts are never auto-resolved: the merge is aborted, the tree left
// clean, and the conflict escalated by the caller.
type PhaseMerger struct {
	git         secondary.GitClient
	phaseRepo   secondary.PhaseStateRepository
	activityLog secondary.ActivityLog
	locks       *locks.Manager
}

// NewPhaseMerger creates a new PhaseMerger with injected dependencies.
func NewPhaseMerger(git secondary.GitClient, phaseRepo secondary.PhaseStateRepository, activityLog secondary.ActivityLog, lockMgr *locks.Manager) *PhaseMerger {
	return &PhaseMerger{
		git:         git,
		phaseRepo:   phaseRepo,
		activityLog: activityLog,
		locks:       lockMgr,
	}
}

// MergePhase merges every succeeded worker branch into the phase branch,
// in expected-set order. The whole sequence holds the repo lock; one
// working tree cannot host two merges.
func (m *PhaseMerger) MergePhase(ctx context.Context, project string, state *phase.State, phaseName string) (*MergeOutcome, error) {
	phaseBranch := worktree.PhaseBranch(state.RunID, state.PhaseNumber, phaseName)
	outcome := &MergeOutcome{PhaseBranch: phaseBranch}

	err := m.locks.Do("repo:"+state.RepoDir, func() error {
		exists, err := m.git.BranchExists(ctx, state.RepoDir, phaseBranch)
		if err != nil {
			return err
		}
		if !exists {
			if err := m.git.CreateBranch(ctx, state.RepoDir, phaseBranch, state.BaseBranch); err != nil {
				return err
			}
		}
		if err := m.git.Checkout(ctx, state.RepoDir, phaseBranch); err != nil {
			return err
		}

		for _, workerID := range phase.SucceededWorkers(state) {
			branch := worktree.WorkerBranch(state.RunID, state.PhaseNumber, workerID)
			result, err := m.git.Merge(ctx, state.RepoDir, branch)
			if err != nil {
				outcome.FailedBranch = branch
				outcome.FailureReason = err.Error()
				return nil
			}
			if result.Conflicted {
				if abortErr := m.git.AbortMerge(ctx, state.RepoDir); abortErr != nil {
					return fmt.Errorf("failed to abort conflicted merge of %s: %w", branch, abortErr)
				}
				outcome.Conflicted = true
				outcome.ConflictBranch = branch
				outcome.ConflictFiles = result.ConflictFiles
				return nil
			}
			outcome.Merged = append(outcome.Merged, branch)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("phase merge failed: %w", err)
	}

	switch {
	case outcome.Conflicted:
		_ = m.activityLog.Append(ctx, project, secondary.ActivityEntry{
			Type:    secondary.ActivityMergeConflict,
			Message: fmt.Sprintf("merge conflict folding %s into %s", outcome.ConflictBranch, phaseBranch),
			Fields: map[string]any{
				"runId":    state.RunID,
				"phase":    state.PhaseNumber,
				"branch":   outcome.ConflictBranch,
				"conflict": outcome.ConflictFiles,
			},
		})
	case outcome.FailedBranch != "":
		_ = m.activityLog.Append(ctx, project, secondary.ActivityEntry{
			Type:    secondary.ActivityMergeFailed,
			Message: fmt.Sprintf("merge of %s into %s failed: %s", outcome.FailedBranch, phaseBranch, outcome.FailureReason),
			Fields: map[string]any{
				"runId":  state.RunID,
				"phase":  state.PhaseNumber,
				"branch": outcome.FailedBranch,
			},
		})
	default:
		if err := m.phaseRepo.SetPhaseBranch(ctx, state.RunID, state.PhaseNumber, phaseBranch); err != nil {
			return nil, fmt.Errorf("failed to record phase branch: %w", err)
		}
		_ = m.activityLog.Append(ctx, project, secondary.ActivityEntry{
			Type:    secondary.ActivityPhaseMerged,
			Message: fmt.Sprintf("merged %d worker branches into %s", len(outcome.Merged), phaseBranch),
			Fields: map[string]any{
				"runId":  state.RunID,
				"phase":  state.PhaseNumber,
				"merged": outcome.Merged,
			},
		})
	}
	return outcome, nil
}

// MergeToBase folds an approved phase branch back into the base branch.
// Called after the review chain completes.
func (m *PhaseMerger) MergeToBase(ctx context.Context, project string, state *phase.State) (*MergeOutcome, error) {
	outcome := &MergeOutcome{PhaseBranch: state.PhaseBranch}
	if state.PhaseBranch == "" {
		return nil, fmt.Errorf("phase %d of run %s has no phase branch to merge", state.PhaseNumber, state.RunID)
	}

	err := m.locks.Do("repo:"+state.RepoDir, func() error {
		if err := m.git.Checkout(ctx, state.RepoDir, state.BaseBranch); err != nil {
			return err
		}
		result, err := m.git.Merge(ctx, state.RepoDir, state.PhaseBranch)
		if err != nil {
			outcome.FailedBranch = state.PhaseBranch
			outcome.FailureReason = err.Error()
			return nil
		}
		if result.Conflicted {
			if abortErr := m.git.AbortMerge(ctx, state.RepoDir); abortErr != nil {
				return fmt.Errorf("failed to abort conflicted merge of %s: %w", state.PhaseBranch, abortErr)
			}
			outcome.Conflicted = true
			outcome.ConflictBranch = state.PhaseBranch
			outcome.ConflictFiles = result.ConflictFiles
			return nil
		}
		outcome.Merged = []string{state.PhaseBranch}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("base merge failed: %w", err)
	}
	return outcome, nil
}
