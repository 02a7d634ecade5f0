// Package git implements the GitClient port by shelling out to the git
// binary. No go-git dependency: worktree support there is incomplete and
// the orchestrator only ever runs where a real git is present.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/example/foreman/internal/ports/secondary"
)

// Client runs git commands against a repository working tree.
type Client struct{}

// NewClient creates a new git client.
func NewClient() *Client {
	return &Client{}
}

// CreateBranch creates a branch from base without checking it out.
func (c *Client) CreateBranch(ctx context.Context, repoDir, branch, base string) error {
	if err := c.run(ctx, repoDir, "branch", branch, base); err != nil {
		return fmt.Errorf("failed to create branch %s from %s: %w", branch, base, err)
	}
	return nil
}

// BranchExists reports whether a branch exists. With --quiet, rev-parse
// exits 1 for an absent ref; any other failure (missing or corrupted
// repository) is a real error.
func (c *Client) BranchExists(ctx context.Context, repoDir, branch string) (bool, error) {
	err := c.run(ctx, repoDir, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("failed to check branch %s: %w", branch, err)
}

// AddWorktree creates a worktree at path on a new branch from base.
func (c *Client) AddWorktree(ctx context.Context, repoDir, path, branch, base string) error {
	if err := c.run(ctx, repoDir, "worktree", "add", "-b", branch, path, base); err != nil {
		return fmt.Errorf("failed to add worktree %s on %s: %w", path, branch, err)
	}
	return nil
}

// RemoveWorktree removes a worktree and prunes its metadata.
func (c *Client) RemoveWorktree(ctx context.Context, repoDir, path string) error {
	if err := c.run(ctx, repoDir, "worktree", "remove", "--force", path); err != nil {
		return fmt.Errorf("failed to remove worktree %s: %w", path, err)
	}
	return c.run(ctx, repoDir, "worktree", "prune")
}

// Checkout switches the main working tree to branch.
func (c *Client) Checkout(ctx context.Context, repoDir, branch string) error {
	if err := c.run(ctx, repoDir, "checkout", branch); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", branch, err)
	}
	return nil
}

// Merge merges source into the currently checked-out branch with a merge
// commit. A conflicted merge is reported in the result, not as an error;
// the caller decides whether to abort.
func (c *Client) Merge(ctx context.Context, repoDir, source string) (*secondary.MergeResult, error) {
	output, err := c.runOutput(ctx, repoDir, "merge", "--no-ff", "--no-edit", source)
	if err == nil {
		return &secondary.MergeResult{Output: output}, nil
	}

	conflicts, listErr := c.conflictFiles(ctx, repoDir)
	if listErr == nil && len(conflicts) > 0 {
		return &secondary.MergeResult{
			Conflicted:    true,
			ConflictFiles: conflicts,
			Output:        output,
		}, nil
	}
	return nil, fmt.Errorf("failed to merge %s: %w", source, err)
}

// AbortMerge aborts an in-progress merge, restoring a clean tree.
func (c *Client) AbortMerge(ctx context.Context, repoDir string) error {
	if err := c.run(ctx, repoDir, "merge", "--abort"); err != nil {
		return fmt.Errorf("failed to abort merge: %w", err)
	}
	return nil
}

// CurrentBranch returns the branch the working tree is on.
func (c *Client) CurrentBranch(ctx context.Context, repoDir string) (string, error) {
	output, err := c.runOutput(ctx, repoDir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return strings.TrimSpace(output), nil
}

// IsDirty reports whether the working tree has uncommitted changes.
func (c *Client) IsDirty(ctx context.Context, repoDir string) (bool, error) {
	output, err := c.runOutput(ctx, repoDir, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to get status: %w", err)
	}
	return strings.TrimSpace(output) != "", nil
}

func (c *Client) conflictFiles(ctx context.Context, repoDir string) ([]string, error) {
	output, err := c.runOutput(ctx, repoDir, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	return ParseConflictFiles(output), nil
}

// ParseConflictFiles extracts the unmerged paths from git diff output.
func ParseConflictFiles(output string) []string {
	var files []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files
}

// run executes a git command and returns an error if it fails.
func (c *Client) run(ctx context.Context, repoDir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}

// runOutput executes a git command and returns its stdout.
func (c *Client) runOutput(ctx context.Context, repoDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// Ensure Client implements the interface
var _ secondary.GitClient = (*Client)(nil)
