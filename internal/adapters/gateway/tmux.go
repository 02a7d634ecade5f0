// Package gateway spawns agent sessions in tmux. Each worker, interviewer,
// reviewer, and fixer gets its own detached session so an operator can
// attach and watch any agent live.
package gateway

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/GianlucaP106/gotmux/gotmux"

	"github.com/example/foreman/internal/ports/secondary"
)

// promptFileName is where the agent prompt is written inside the work dir.
const promptFileName = ".foreman-prompt.md"

// TmuxGateway wraps gotmux for agent session lifecycle management.
type TmuxGateway struct {
	tmux     *gotmux.Tmux
	agentCmd string
}

// NewTmuxGateway creates a gateway that launches agents with agentCmd.
// The prompt file path is appended as the command's final argument.
func NewTmuxGateway(agentCmd string) (*TmuxGateway, error) {
	tmux, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to create tmux client: %w", err)
	}
	return &TmuxGateway{tmux: tmux, agentCmd: agentCmd}, nil
}

// Spawn writes the prompt into the work dir and starts a detached tmux
// session running the agent there. Respawning an existing session kills
// the old one first so a retry always gets a fresh agent.
func (g *TmuxGateway) Spawn(ctx context.Context, req secondary.SpawnRequest) (*secondary.SessionHandle, error) {
	if req.WorkDir == "" {
		return nil, fmt.Errorf("spawn request has no work dir")
	}

	promptPath := filepath.Join(req.WorkDir, promptFileName)
	if err := os.WriteFile(promptPath, []byte(req.Prompt), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write prompt file: %w", err)
	}

	name := SessionName(req)
	if existing, err := g.findSession(name); err != nil {
		return nil, err
	} else if existing != nil {
		if err := existing.Kill(); err != nil {
			return nil, fmt.Errorf("failed to kill stale session %s: %w", name, err)
		}
	}

	session, err := g.tmux.NewSession(&gotmux.SessionOptions{
		Name:           name,
		StartDirectory: req.WorkDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", name, err)
	}

	windows, err := session.ListWindows()
	if err != nil || len(windows) == 0 {
		return nil, fmt.Errorf("no windows found in new session %s", name)
	}
	panes, err := windows[0].ListPanes()
	if err != nil || len(panes) == 0 {
		return nil, fmt.Errorf("failed to get initial pane of %s", name)
	}
	pane := panes[0]

	// respawn-pane -k runs the agent as the pane's root process; the command
	// string goes through tmux's own shell invocation, which sidesteps the
	// gotmux single-quote wrapping bug for multi-word commands.
	command := AgentCommand(g.agentCmd, promptPath)
	if err := exec.CommandContext(ctx, "tmux", "respawn-pane", "-t", pane.Id, "-k", command).Run(); err != nil {
		return nil, fmt.Errorf("failed to respawn agent pane: %w", err)
	}

	if err := pane.SetOption("@foreman_role", string(req.Role)); err != nil {
		return nil, fmt.Errorf("failed to set @foreman_role: %w", err)
	}
	if err := pane.SetOption("@foreman_run", req.RunID); err != nil {
		return nil, fmt.Errorf("failed to set @foreman_run: %w", err)
	}

	return &secondary.SessionHandle{ID: name, Target: pane.Id}, nil
}

// SessionExists checks if a tmux session exists.
func (g *TmuxGateway) SessionExists(name string) bool {
	session, err := g.findSession(name)
	return err == nil && session != nil
}

// KillSession terminates a tmux session.
func (g *TmuxGateway) KillSession(name string) error {
	session, err := g.findSession(name)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("session %s not found", name)
	}
	return session.Kill()
}

func (g *TmuxGateway) findSession(name string) (*gotmux.Session, error) {
	sessions, err := g.tmux.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, s := range sessions {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, nil
}

// SessionName derives the tmux session name for a spawn request.
// Names stay unique per (run, phase, agent) so respawns replace the
// right session and operators can find agents by run prefix.
func SessionName(req secondary.SpawnRequest) string {
	run := req.RunID
	if len(run) > 8 {
		run = run[:8]
	}
	switch req.Role {
	case secondary.RoleInterviewer:
		return fmt.Sprintf("foreman-%s-interview", sanitize(req.Project))
	case secondary.RoleReviewer:
		return fmt.Sprintf("foreman-%s-p%d-review-%s", run, req.PhaseNumber, sanitize(req.ReviewRole))
	case secondary.RoleFixer:
		return fmt.Sprintf("foreman-%s-p%d-fix", run, req.PhaseNumber)
	default:
		return fmt.Sprintf("foreman-%s-p%d-%s", run, req.PhaseNumber, sanitize(req.TaskID))
	}
}

// AgentCommand builds the shell command launching the agent with its prompt.
func AgentCommand(agentCmd, promptPath string) string {
	return fmt.Sprintf("%s %q", agentCmd, promptPath)
}

func sanitize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	// tmux treats '.' and ':' as target separators
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, ":", "-")
	return s
}

// Ensure TmuxGateway implements the interface
var _ secondary.AgentGateway = (*TmuxGateway)(nil)
