package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// Most exec-backed operations need a full repository with history and are
// integration-test territory; the parsing helpers and branch lookup are
// covered here.

// initTestRepo creates a git repository with one commit and returns its
// directory and current branch name.
func initTestRepo(t *testing.T) (string, string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v: %s", args, err, out)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{
		{"add", "."},
		{"commit", "-m", "init"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v: %s", args, err, out)
		}
	}

	branch, err := NewClient().CurrentBranch(context.Background(), dir)
	if err != nil {
		t.Fatalf("CurrentBranch failed: %v", err)
	}
	return dir, branch
}

func TestBranchExists(t *testing.T) {
	ctx := context.Background()
	c := NewClient()

	t.Run("absent branch is not an error", func(t *testing.T) {
		dir, _ := initTestRepo(t)
		exists, err := c.BranchExists(ctx, dir, "no-such-branch")
		if err != nil {
			t.Fatalf("BranchExists failed: %v", err)
		}
		if exists {
			t.Error("expected absent branch")
		}
	})

	t.Run("existing branch is found", func(t *testing.T) {
		dir, base := initTestRepo(t)
		if err := c.CreateBranch(ctx, dir, "feature", base); err != nil {
			t.Fatalf("CreateBranch failed: %v", err)
		}
		exists, err := c.BranchExists(ctx, dir, "feature")
		if err != nil {
			t.Fatalf("BranchExists failed: %v", err)
		}
		if !exists {
			t.Error("expected branch to exist")
		}
	})

	t.Run("missing repository surfaces an error", func(t *testing.T) {
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("git not installed")
		}
		if _, err := c.BranchExists(ctx, t.TempDir(), "main"); err == nil {
			t.Error("expected an error outside a repository")
		}
	})
}

func TestParseConflictFiles(t *testing.T) {
	t.Run("extracts unmerged paths", func(t *testing.T) {
		output := "internal/app/service.go\ncmd/main.go\n"
		files := ParseConflictFiles(output)
		if len(files) != 2 {
			t.Fatalf("got %d files, want 2", len(files))
		}
		if files[0] != "internal/app/service.go" || files[1] != "cmd/main.go" {
			t.Errorf("files = %v", files)
		}
	})

	t.Run("empty output yields no files", func(t *testing.T) {
		if files := ParseConflictFiles(""); len(files) != 0 {
			t.Errorf("files = %v, want none", files)
		}
		if files := ParseConflictFiles("\n\n"); len(files) != 0 {
			t.Errorf("files = %v, want none", files)
		}
	})
}

func TestNewClient(t *testing.T) {
	if NewClient() == nil {
		t.Error("expected non-nil client")
	}
}
