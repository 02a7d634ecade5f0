package worktree

import (
	"strings"
	"testing"
)

func TestWorkerBranch(t *testing.T) {
	t.Run("deterministic and unique per worker", func(t *testing.T) {
		a := WorkerBranch("0b5fbe9c-6a51-4a2f-9f4e-8f1f6f1c1234", 2, "T-001")
		b := WorkerBranch("0b5fbe9c-6a51-4a2f-9f4e-8f1f6f1c1234", 2, "T-002")

		if a == b {
			t.Errorf("branches for distinct workers collide: %q", a)
		}
		if a != "foreman/0b5fbe9c/p2/T-001" {
			t.Errorf("branch = %q", a)
		}
		if a != WorkerBranch("0b5fbe9c-6a51-4a2f-9f4e-8f1f6f1c1234", 2, "T-001") {
			t.Error("branch naming is not deterministic")
		}
	})

	t.Run("sanitizes unsafe characters", func(t *testing.T) {
		b := WorkerBranch("run one", 1, "task id")
		if strings.Contains(b, " ") {
			t.Errorf("branch contains spaces: %q", b)
		}
	})
}

func TestPhaseBranch(t *testing.T) {
	b := PhaseBranch("0b5fbe9c-6a51", 3, "Build Backend!")
	if b != "foreman/0b5fbe9c/phase-3-build-backend" {
		t.Errorf("branch = %q", b)
	}

	if b := PhaseBranch("abc", 1, "???"); !strings.HasSuffix(b, "phase-1-phase") {
		t.Errorf("empty slug should fall back: %q", b)
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Fix the API", "fix-the-api"},
		{"  weird -- spacing  ", "weird-spacing"},
		{"UPPER and lower", "upper-and-lower"},
	}
	for _, c := range cases {
		if got := Slug(c.in, 30); got != c.want {
			t.Errorf("Slug(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	long := Slug(strings.Repeat("verylongword ", 10), 20)
	if len(long) > 20 || strings.HasSuffix(long, "-") {
		t.Errorf("Slug did not truncate cleanly: %q", long)
	}
}
