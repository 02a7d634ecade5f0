// Package taskgraph builds a dependency graph over a phase's task list
// and computes the ready set: tasks whose dependencies are all done.
package taskgraph

import (
	"fmt"
	"sort"
)

// Status is the lifecycle state of a task in the graph.
type Status string

const (
	StatusPending    Status = "pending"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Task is one unit of work within a phase.
type Task struct {
	ID        string
	Title     string
	DependsOn []string
	Status    Status
}

// Graph is a dependency graph over a phase's tasks.
type Graph struct {
	tasks map[string]*Task
	order []string
}

// New validates the task list and builds a graph. Unknown dependencies
// and dependency cycles are rejected.
func New(tasks []Task) (*Graph, error) {
	g := &Graph{tasks: make(map[string]*Task, len(tasks))}
	for i := range tasks {
		t := tasks[i]
		if t.ID == "" {
			return nil, fmt.Errorf("task at index %d has no id", i)
		}
		if _, dup := g.tasks[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %q", t.ID)
		}
		if t.Status == "" {
			t.Status = StatusPending
		}
		g.tasks[t.ID] = &t
		g.order = append(g.order, t.ID)
	}
	for _, id := range g.order {
		for _, dep := range g.tasks[id].DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				return nil, fmt.Errorf("task %q depends on unknown task %q", id, dep)
			}
		}
	}
	if err := g.checkCycles(); err != nil {
		return nil, err
	}
	return g, nil
}

// Ready returns the tasks whose dependencies are all done and that have
// not started, in stable declaration order then by ID.
func (g *Graph) Ready() []*Task {
	var out []*Task
	for _, id := range g.order {
		t := g.tasks[id]
		if t.Status != StatusPending && t.Status != StatusReady {
			continue
		}
		if g.depsDone(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the task with the given ID, or nil.
func (g *Graph) Get(id string) *Task {
	return g.tasks[id]
}

// All returns every task in declaration order.
func (g *Graph) All() []*Task {
	out := make([]*Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id])
	}
	return out
}

// SetStatus updates a task's status.
func (g *Graph) SetStatus(id string, s Status) error {
	t, ok := g.tasks[id]
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	t.Status = s
	return nil
}

// AllTerminal reports whether every task is done or failed.
func (g *Graph) AllTerminal() bool {
	for _, t := range g.tasks {
		if t.Status != StatusDone && t.Status != StatusFailed {
			return false
		}
	}
	return len(g.tasks) > 0
}

func (g *Graph) depsDone(t *Task) bool {
	for _, dep := range t.DependsOn {
		if g.tasks[dep].Status != StatusDone {
			return false
		}
	}
	return true
}

// checkCycles runs a DFS with coloring over the dependency edges.
func (g *Graph) checkCycles() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.tasks))
	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, dep := range g.tasks[id].DependsOn {
			switch color[dep] {
			case gray:
				return fmt.Errorf("dependency cycle involving tasks %q and %q", id, dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}
	for _, id := range g.order {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}
