package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("full definition", func(t *testing.T) {
		def, err := Parse([]byte(`
phases:
  - name: spec
    tasks:
      - id: spec
        title: Write the spec
    review: [architect]
  - name: build
    maxWorkers: 2
    merge: true
    tasks:
      - id: scaffold
        title: Scaffold
      - id: implement
        title: Implement
        dependsOn: [scaffold]
    review: [architect, qa]
`))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if def.PhaseCount() != 2 {
			t.Fatalf("got %d phases", def.PhaseCount())
		}

		build, err := def.Phase(2)
		if err != nil {
			t.Fatalf("Phase failed: %v", err)
		}
		if build.Name != "build" || build.MaxWorkers != 2 {
			t.Errorf("got %+v", build)
		}
		if len(build.Tasks) != 2 || build.Tasks[1].DependsOn[0] != "scaffold" {
			t.Errorf("tasks = %+v", build.Tasks)
		}
		if len(build.Review) != 2 || build.Review[1] != "qa" {
			t.Errorf("review = %v", build.Review)
		}
		if !def.IsLast(2) || def.IsLast(1) {
			t.Error("IsLast wrong")
		}
	})

	t.Run("merge defaults on", func(t *testing.T) {
		def, err := Parse([]byte("phases:\n  - name: build\n    tasks:\n      - id: a\n"))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		phase, _ := def.Phase(1)
		if !phase.MergeEnabled() {
			t.Error("merge should default to enabled")
		}
	})

	t.Run("merge can be disabled", func(t *testing.T) {
		def, err := Parse([]byte("phases:\n  - name: spec\n    merge: false\n    tasks:\n      - id: a\n"))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		phase, _ := def.Phase(1)
		if phase.MergeEnabled() {
			t.Error("merge should be disabled")
		}
	})

	t.Run("rejects invalid definitions", func(t *testing.T) {
		cases := map[string]string{
			"no phases":        "phases: []\n",
			"unnamed phase":    "phases:\n  - tasks:\n      - id: a\n",
			"taskless phase":   "phases:\n  - name: build\n",
			"duplicate phase":  "phases:\n  - name: build\n    tasks:\n      - id: a\n  - name: build\n    tasks:\n      - id: b\n",
			"duplicate task":   "phases:\n  - name: build\n    tasks:\n      - id: a\n      - id: a\n",
			"unknown dep":      "phases:\n  - name: build\n    tasks:\n      - id: a\n        dependsOn: [ghost]\n",
			"cross-phase dep":  "phases:\n  - name: spec\n    tasks:\n      - id: s\n  - name: build\n    tasks:\n      - id: b\n        dependsOn: [s]\n",
			"negative workers": "phases:\n  - name: build\n    maxWorkers: -1\n    tasks:\n      - id: a\n",
		}
		for name, input := range cases {
			if _, err := Parse([]byte(input)); err == nil {
				t.Errorf("%s: expected error", name)
			}
		}
	})

	t.Run("phase out of range", func(t *testing.T) {
		def, _ := Parse([]byte("phases:\n  - name: build\n    tasks:\n      - id: a\n"))
		if _, err := def.Phase(0); err == nil {
			t.Error("expected error for phase 0")
		}
		if _, err := def.Phase(2); err == nil {
			t.Error("expected error for phase past end")
		}
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".foreman"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(DefaultDefinition), 0o644); err != nil {
		t.Fatal(err)
	}

	def, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if def.PhaseCount() != 2 {
		t.Errorf("default definition has %d phases", def.PhaseCount())
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing pipeline file")
	}
}
