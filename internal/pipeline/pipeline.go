// Package pipeline loads the per-project pipeline definition from
// .foreman/pipeline.yaml. The definition is the source of truth for
// phase ordering, task fan-out, and review chains.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the pipeline definition path relative to the repo root.
const FileName = ".foreman/pipeline.yaml"

// Task is one unit of work inside a phase, executed by a single worker.
type Task struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	DependsOn []string `yaml:"dependsOn,omitempty"`
}

// Phase is one pipeline stage. Phases run strictly in order; tasks
// inside a phase run concurrently subject to their dependencies.
type Phase struct {
	Name       string   `yaml:"name"`
	Tasks      []Task   `yaml:"tasks,omitempty"`
	Review     []string `yaml:"review,omitempty"`
	MaxWorkers int      `yaml:"maxWorkers,omitempty"`
	Merge      *bool    `yaml:"merge,omitempty"`
}

// MergeEnabled reports whether this phase merges worker branches on
// completion. Merging is on unless the phase opts out.
func (p *Phase) MergeEnabled() bool {
	return p.Merge == nil || *p.Merge
}

// Definition is the parsed pipeline for one project.
type Definition struct {
	Phases []Phase `yaml:"phases"`
}

// PhaseCount returns the number of phases.
func (d *Definition) PhaseCount() int {
	return len(d.Phases)
}

// Phase returns the 1-based phase, or an error when out of range.
func (d *Definition) Phase(number int) (*Phase, error) {
	if number < 1 || number > len(d.Phases) {
		return nil, fmt.Errorf("phase %d out of range (pipeline has %d phases)", number, len(d.Phases))
	}
	return &d.Phases[number-1], nil
}

// IsLast reports whether number is the final phase.
func (d *Definition) IsLast(number int) bool {
	return number == len(d.Phases)
}

// Load reads and validates the pipeline definition for a repo.
func Load(repoDir string) (*Definition, error) {
	path := filepath.Join(repoDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a pipeline definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline YAML: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks structural invariants: at least one phase, unique
// phase names, unique task IDs within a phase, and dependencies that
// reference tasks in the same phase.
func (d *Definition) Validate() error {
	if len(d.Phases) == 0 {
		return fmt.Errorf("pipeline has no phases")
	}

	phaseNames := make(map[string]bool, len(d.Phases))
	for i, phase := range d.Phases {
		if phase.Name == "" {
			return fmt.Errorf("phase %d has no name", i+1)
		}
		if phaseNames[phase.Name] {
			return fmt.Errorf("duplicate phase name %q", phase.Name)
		}
		phaseNames[phase.Name] = true

		if len(phase.Tasks) == 0 {
			return fmt.Errorf("phase %q has no tasks", phase.Name)
		}
		taskIDs := make(map[string]bool, len(phase.Tasks))
		for _, task := range phase.Tasks {
			if task.ID == "" {
				return fmt.Errorf("phase %q has a task with no id", phase.Name)
			}
			if taskIDs[task.ID] {
				return fmt.Errorf("phase %q has duplicate task %q", phase.Name, task.ID)
			}
			taskIDs[task.ID] = true
		}
		for _, task := range phase.Tasks {
			for _, dep := range task.DependsOn {
				if !taskIDs[dep] {
					return fmt.Errorf("task %q in phase %q depends on unknown task %q", task.ID, phase.Name, dep)
				}
			}
		}
		if phase.MaxWorkers < 0 {
			return fmt.Errorf("phase %q has negative maxWorkers", phase.Name)
		}
	}
	return nil
}

// DefaultDefinition is the skeleton written by foreman init.
const DefaultDefinition = `# Foreman pipeline definition.
phases:
  - name: spec
    tasks:
      - id: spec
        title: Write the project specification
    review:
      - architect
  - name: build
    maxWorkers: 4
    tasks:
      - id: scaffold
        title: Scaffold the project
      - id: implement
        title: Implement the core features
        dependsOn: [scaffold]
    review:
      - architect
      - qa
`
