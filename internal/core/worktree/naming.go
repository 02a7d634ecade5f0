// Package worktree contains deterministic branch and worktree naming.
// Names are derived from run/phase/worker identity so a branch seen in
// git log can be traced back to the worker that produced it.
package worktree

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	nonSlug    = regexp.MustCompile(`[^a-z0-9-]`)
	multiDash  = regexp.MustCompile(`-+`)
	branchSafe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// WorkerBranch returns the isolated branch for one worker.
// Format: foreman/{run8}/p{phase}/{workerID}
func WorkerBranch(runID string, phaseNumber int, workerID string) string {
	return fmt.Sprintf("foreman/%s/p%d/%s", shortRun(runID), phaseNumber, sanitize(workerID))
}

// PhaseBranch returns the integration branch for a phase.
// Format: foreman/{run8}/phase-{n}-{slug}
func PhaseBranch(runID string, phaseNumber int, phaseName string) string {
	slug := Slug(phaseName, 30)
	if slug == "" {
		slug = "phase"
	}
	return fmt.Sprintf("foreman/%s/phase-%d-%s", shortRun(runID), phaseNumber, slug)
}

// WorkerPath returns the worktree directory for one worker under baseDir.
func WorkerPath(baseDir, runID string, phaseNumber int, workerID string) string {
	return filepath.Join(baseDir, shortRun(runID), fmt.Sprintf("p%d", phaseNumber), sanitize(workerID))
}

// Slug creates a branch-friendly slug from a title.
func Slug(title string, maxLen int) string {
	slug := strings.ToLower(title)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = nonSlug.ReplaceAllString(slug, "")
	slug = multiDash.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "-")
	}
	return slug
}

func shortRun(runID string) string {
	id := sanitize(runID)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitize(s string) string {
	return branchSafe.ReplaceAllString(s, "-")
}
