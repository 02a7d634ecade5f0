package secondary

import "context"

// GitClient defines the secondary port for source-control operations.
// All operations against a given repoDir must be serialized by the caller
// (internal/locks); one working tree is an exclusive resource.
type GitClient interface {
	// CreateBranch creates branch from base without checking it out.
	CreateBranch(ctx context.Context, repoDir, branch, base string) error

	// BranchExists reports whether a branch exists.
	BranchExists(ctx context.Context, repoDir, branch string) (bool, error)

	// AddWorktree creates a worktree at path on a new branch from base.
	AddWorktree(ctx context.Context, repoDir, path, branch, base string) error

	// RemoveWorktree removes a worktree and prunes its metadata.
	RemoveWorktree(ctx context.Context, repoDir, path string) error

	// Checkout switches the main working tree to branch.
	Checkout(ctx context.Context, repoDir, branch string) error

	// Merge merges source into the currently checked-out branch.
	Merge(ctx context.Context, repoDir, source string) (*MergeResult, error)

	// AbortMerge aborts an in-progress merge, restoring a clean tree.
	AbortMerge(ctx context.Context, repoDir string) error

	// CurrentBranch returns the branch the working tree is on.
	CurrentBranch(ctx context.Context, repoDir string) (string, error)

	// IsDirty reports whether the working tree has uncommitted changes.
	IsDirty(ctx context.Context, repoDir string) (bool, error)
}

// MergeResult describes the outcome of a single merge invocation.
type MergeResult struct {
	Conflicted    bool
	ConflictFiles []string
	Output        string
}
