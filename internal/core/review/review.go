// Package review contains the pure review-chain state machine: a closed
// decision type, validation, and chain transitions. Spawning reviewers
// and fixers is the shell's job (internal/app).
package review

import "fmt"

// MaxFixAttempts bounds fix detours per (run, phase). Once spent, any
// further fix decision is converted into a forced escalation.
const MaxFixAttempts = 3

// DecisionKind enumerates the reviewer decisions.
type DecisionKind string

const (
	KindApprove  DecisionKind = "approve"
	KindFix      DecisionKind = "fix"
	KindEscalate DecisionKind = "escalate"
)

// Decision is a validated reviewer decision. Construct via ParseDecision
// so invalid field combinations are unrepresentable downstream.
type Decision struct {
	Kind         DecisionKind
	Comments     string
	Instructions string // fix only
	Reason       string // escalate only
}

// ParseDecision validates the raw callback fields into a Decision.
// fix requires instructions; escalate requires a reason. Extraneous
// fields for a kind are rejected as client errors.
func ParseDecision(kind, comments, instructions, reason string) (Decision, error) {
	switch DecisionKind(kind) {
	case KindApprove:
		if instructions != "" || reason != "" {
			return Decision{}, fmt.Errorf("approve decision must not carry fix instructions or an escalation reason")
		}
		return Decision{Kind: KindApprove, Comments: comments}, nil
	case KindFix:
		if instructions == "" {
			return Decision{}, fmt.Errorf("fix decision requires fixInstructions")
		}
		return Decision{Kind: KindFix, Comments: comments, Instructions: instructions}, nil
	case KindEscalate:
		if reason == "" {
			return Decision{}, fmt.Errorf("escalate decision requires escalationReason")
		}
		return Decision{Kind: KindEscalate, Reason: reason}, nil
	default:
		return Decision{}, fmt.Errorf("unknown decision %q (must be approve, fix, or escalate)", kind)
	}
}

// ChainState tracks one review chain over a merged phase branch.
type ChainState struct {
	RunID           string
	PhaseNumber     int
	Chain           []string
	CurrentIndex    int
	Approvals       []string
	FixAttempts     int
	LastInstruction string
}

// Remaining returns the reviewer roles that have not yet approved.
func (c *ChainState) Remaining() []string {
	if c.CurrentIndex >= len(c.Chain) {
		return nil
	}
	return c.Chain[c.CurrentIndex:]
}

// Complete reports whether every reviewer in the chain has approved.
func (c *ChainState) Complete() bool {
	return len(c.Chain) > 0 && c.CurrentIndex >= len(c.Chain)
}

// CurrentRole returns the reviewer the chain is waiting on, or "" when
// the chain is complete.
func (c *ChainState) CurrentRole() string {
	if c.CurrentIndex >= len(c.Chain) {
		return ""
	}
	return c.Chain[c.CurrentIndex]
}

// TransitionKind enumerates the outcomes of applying a decision.
type TransitionKind string

const (
	// TransitionAdvanced means the next reviewer in the chain is due.
	TransitionAdvanced TransitionKind = "advanced"
	// TransitionComplete means every reviewer approved; merge to target.
	TransitionComplete TransitionKind = "complete"
	// TransitionFix means a fixer must be spawned and the chain resets.
	TransitionFix TransitionKind = "fix"
	// TransitionEscalate means the chain halts pending human resolution.
	TransitionEscalate TransitionKind = "escalate"
)

// Transition is the outcome of applying one decision to the chain.
type Transition struct {
	Kind         TransitionKind
	NextReviewer string
	Instructions string
	Reason       string
	// Forced marks a fix decision converted to escalate because the
	// fix budget was already spent.
	Forced bool
}

// Apply advances the chain with the given role's decision. The role must
// be the reviewer the chain is currently waiting on; out-of-order
// decisions are rejected (stale or duplicated callbacks).
func Apply(c *ChainState, role string, d Decision) (Transition, error) {
	if c.Complete() {
		return Transition{}, fmt.Errorf("review chain for run %s phase %d is already complete", c.RunID, c.PhaseNumber)
	}
	if current := c.CurrentRole(); role != current {
		return Transition{}, fmt.Errorf("decision from %q but chain is awaiting %q", role, current)
	}

	switch d.Kind {
	case KindApprove:
		c.Approvals = append(c.Approvals, role)
		c.CurrentIndex++
		if c.Complete() {
			return Transition{Kind: TransitionComplete}, nil
		}
		return Transition{Kind: TransitionAdvanced, NextReviewer: c.CurrentRole()}, nil

	case KindFix:
		if c.FixAttempts >= MaxFixAttempts {
			return Transition{
				Kind:   TransitionEscalate,
				Reason: fmt.Sprintf("fix attempts exhausted (%d/%d); reviewer %s requested: %s", c.FixAttempts, MaxFixAttempts, role, d.Instructions),
				Forced: true,
			}, nil
		}
		c.FixAttempts++
		c.CurrentIndex = 0
		c.Approvals = nil
		c.LastInstruction = d.Instructions
		return Transition{Kind: TransitionFix, Instructions: d.Instructions}, nil

	case KindEscalate:
		return Transition{Kind: TransitionEscalate, Reason: d.Reason}, nil

	default:
		return Transition{}, fmt.Errorf("unknown decision kind %q", d.Kind)
	}
}
