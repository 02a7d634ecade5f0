package review

import "testing"

func newChain(roles ...string) *ChainState {
	return &ChainState{RunID: "run-1", PhaseNumber: 3, Chain: roles}
}

func TestParseDecision(t *testing.T) {
	t.Run("approve", func(t *testing.T) {
		d, err := ParseDecision("approve", "looks good", "", "")
		if err != nil {
			t.Fatalf("ParseDecision failed: %v", err)
		}
		if d.Kind != KindApprove || d.Comments != "looks good" {
			t.Errorf("decision = %+v", d)
		}
	})

	t.Run("fix without instructions is rejected", func(t *testing.T) {
		if _, err := ParseDecision("fix", "", "", ""); err == nil {
			t.Error("expected error for fix without instructions")
		}
	})

	t.Run("escalate without reason is rejected", func(t *testing.T) {
		if _, err := ParseDecision("escalate", "", "", ""); err == nil {
			t.Error("expected error for escalate without reason")
		}
	})

	t.Run("approve with stray fields is rejected", func(t *testing.T) {
		if _, err := ParseDecision("approve", "", "change this", ""); err == nil {
			t.Error("expected error for approve carrying fix instructions")
		}
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		if _, err := ParseDecision("maybe", "", "", ""); err == nil {
			t.Error("expected error for unknown decision")
		}
	})
}

func TestApplyApprovals(t *testing.T) {
	t.Run("chain of two needs two sequential approvals", func(t *testing.T) {
		c := newChain("architect", "security")

		tr, err := Apply(c, "architect", Decision{Kind: KindApprove})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if tr.Kind != TransitionAdvanced || tr.NextReviewer != "security" {
			t.Errorf("transition = %+v, want advanced to security", tr)
		}

		tr, err = Apply(c, "security", Decision{Kind: KindApprove})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if tr.Kind != TransitionComplete {
			t.Errorf("transition = %+v, want complete", tr)
		}
		if !c.Complete() {
			t.Error("chain should be complete")
		}
	})

	t.Run("out-of-order role is rejected", func(t *testing.T) {
		c := newChain("architect", "security")
		if _, err := Apply(c, "security", Decision{Kind: KindApprove}); err == nil {
			t.Error("security may not decide before architect")
		}
	})

	t.Run("decision on complete chain is rejected", func(t *testing.T) {
		c := newChain("architect")
		Apply(c, "architect", Decision{Kind: KindApprove})
		if _, err := Apply(c, "architect", Decision{Kind: KindApprove}); err == nil {
			t.Error("complete chain must reject further decisions")
		}
	})
}

func TestApplyFix(t *testing.T) {
	t.Run("fix resets progress to index zero", func(t *testing.T) {
		c := newChain("architect", "security")
		Apply(c, "architect", Decision{Kind: KindApprove})

		tr, err := Apply(c, "security", Decision{Kind: KindFix, Instructions: "rename the handler"})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if tr.Kind != TransitionFix || tr.Instructions != "rename the handler" {
			t.Errorf("transition = %+v", tr)
		}
		if c.CurrentIndex != 0 {
			t.Errorf("currentIndex = %d, want 0 after fix", c.CurrentIndex)
		}
		if len(c.Approvals) != 0 {
			t.Errorf("approvals = %v, want reset", c.Approvals)
		}
		if c.FixAttempts != 1 {
			t.Errorf("fixAttempts = %d, want 1", c.FixAttempts)
		}
	})

	t.Run("fix past the budget becomes a forced escalate", func(t *testing.T) {
		c := newChain("architect")
		c.FixAttempts = MaxFixAttempts

		tr, err := Apply(c, "architect", Decision{Kind: KindFix, Instructions: "again"})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if tr.Kind != TransitionEscalate || !tr.Forced {
			t.Errorf("transition = %+v, want forced escalate", tr)
		}
		if c.FixAttempts != MaxFixAttempts {
			t.Errorf("fixAttempts = %d, must not grow past budget", c.FixAttempts)
		}
	})
}

func TestApplyEscalate(t *testing.T) {
	c := newChain("architect", "security")
	tr, err := Apply(c, "architect", Decision{Kind: KindEscalate, Reason: "requirements unclear"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if tr.Kind != TransitionEscalate || tr.Reason != "requirements unclear" {
		t.Errorf("transition = %+v", tr)
	}
	if tr.Forced {
		t.Error("explicit escalate is not forced")
	}
}
