package app

import "fmt"

// Prompt builders for the agent sessions the engine spawns. Every prompt
// ends with the exact foreman hook invocation the agent must run, because
// those callbacks are the engine's only inbound signal.

func interviewPrompt(project string) string {
	return fmt.Sprintf(`You are the interviewer for project %q.

Interview the operator about what should be built, then write the findings
to .foreman/interview.md in this repository. Cover goals, constraints,
and acceptance criteria. When the interview is complete, commit the file.`, project)
}

func workerPrompt(runID string, phaseNumber int, taskID, title string) string {
	return fmt.Sprintf(`You are a worker on task %s: %s

Work only inside this worktree; it is on your dedicated branch. Commit your
work as you go. When you are done, report completion with:

  foreman hook task-complete --run %s --phase %d --task %s --success

If you cannot complete the task, report failure instead:

  foreman hook task-complete --run %s --phase %d --task %s --error "what went wrong"`,
		taskID, title, runID, phaseNumber, taskID, runID, phaseNumber, taskID)
}

func reviewerPrompt(runID string, phaseNumber int, role, phaseBranch string) string {
	return fmt.Sprintf(`You are the %s reviewer for phase %d.

Review the changes on branch %s. Then report exactly one decision:

  foreman hook review-decision --run %s --phase %d --role %s --decision approve
  foreman hook review-decision --run %s --phase %d --role %s --decision fix --instructions "what to change"
  foreman hook review-decision --run %s --phase %d --role %s --decision escalate --reason "why a human is needed"`,
		role, phaseNumber, phaseBranch,
		runID, phaseNumber, role,
		runID, phaseNumber, role,
		runID, phaseNumber, role)
}

func fixerPrompt(runID string, phaseNumber int, phaseBranch, instructions string) string {
	return fmt.Sprintf(`You are the fixer for phase %d, working on branch %s.

A reviewer requested the following changes:

%s

Apply the changes and commit them. Then report:

  foreman hook fix-complete --run %s --phase %d --status completed --summary "what you changed"

If you cannot make the fix, report:

  foreman hook fix-complete --run %s --phase %d --status failed --error "why"`,
		phaseNumber, phaseBranch, instructions,
		runID, phaseNumber,
		runID, phaseNumber)
}
