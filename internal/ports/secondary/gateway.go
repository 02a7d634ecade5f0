package secondary

import "context"

// AgentRole identifies the kind of agent session being spawned.
type AgentRole string

const (
	// RoleWorker implements one task in its own worktree.
	RoleWorker AgentRole = "worker"
	// RoleInterviewer runs the project interview phase.
	RoleInterviewer AgentRole = "interviewer"
	// RoleReviewer reviews a merged phase branch.
	RoleReviewer AgentRole = "reviewer"
	// RoleFixer addresses reviewer-requested changes on the phase branch.
	RoleFixer AgentRole = "fixer"
)

// SpawnRequest describes one agent session to start.
type SpawnRequest struct {
	Role        AgentRole
	RunID       string
	PhaseNumber int
	TaskID      string // workers only
	ReviewRole  string // reviewers only
	Project     string
	WorkDir     string
	Branch      string
	Prompt      string
}

// SessionHandle identifies a spawned agent session.
type SessionHandle struct {
	ID     string
	Target string // gateway-specific address, e.g. tmux session:window
}

// AgentGateway defines the secondary port to the external agent runtime.
// The gateway only starts sessions; completion arrives later through the
// inbound callbacks. A spawn failure is a hard failure the caller
// escalates immediately, it is never retried here.
type AgentGateway interface {
	Spawn(ctx context.Context, req SpawnRequest) (*SessionHandle, error)
}
