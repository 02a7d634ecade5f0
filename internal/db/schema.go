package db

// SchemaSQL is the complete schema for fresh foreman installs.
//
// This is the single source of truth for the database layout. All
// repository tests load it via GetSchemaSQL() so test schemas cannot
// drift from production: a repository referencing a missing column fails
// immediately with "no such column".
const SchemaSQL = `
-- Projects (registered repositories)
CREATE TABLE IF NOT EXISTS projects (
	name TEXT PRIMARY KEY,
	repo_dir TEXT NOT NULL,
	base_branch TEXT NOT NULL DEFAULT 'main',
	current_phase INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL CHECK(status IN ('active', 'completed', 'failed')) DEFAULT 'active',
	archived INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Runs (one pipeline execution per row)
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	current_phase INTEGER NOT NULL DEFAULT 1,
	status TEXT NOT NULL CHECK(status IN ('running', 'completed', 'failed')) DEFAULT 'running',
	base_branch TEXT NOT NULL,
	repo_dir TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME,
	FOREIGN KEY (project_name) REFERENCES projects(name)
);

-- Phase barrier state, one row per (run, phase)
CREATE TABLE IF NOT EXISTS phase_states (
	run_id TEXT NOT NULL,
	phase_number INTEGER NOT NULL,
	phase_name TEXT NOT NULL,
	phase_branch TEXT,
	base_branch TEXT NOT NULL,
	repo_dir TEXT NOT NULL,
	expected_workers TEXT NOT NULL, -- JSON array of worker IDs
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (run_id, phase_number),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

-- Terminal worker results within a phase barrier
CREATE TABLE IF NOT EXISTS phase_worker_results (
	run_id TEXT NOT NULL,
	phase_number INTEGER NOT NULL,
	worker_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('completed', 'failed')),
	output TEXT,
	error TEXT,
	reported_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (run_id, phase_number, worker_id),
	FOREIGN KEY (run_id, phase_number) REFERENCES phase_states(run_id, phase_number)
);

-- Tasks within a phase
CREATE TABLE IF NOT EXISTS tasks (
	run_id TEXT NOT NULL,
	phase_number INTEGER NOT NULL,
	task_id TEXT NOT NULL,
	title TEXT NOT NULL,
	depends_on TEXT NOT NULL DEFAULT '[]', -- JSON array of task IDs
	status TEXT NOT NULL CHECK(status IN ('pending', 'ready', 'in_progress', 'done', 'failed')) DEFAULT 'pending',
	session_id TEXT,
	branch TEXT,
	worktree_path TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME,
	PRIMARY KEY (run_id, phase_number, task_id),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

-- Retry state, keyed by the full composite (run, phase, task)
CREATE TABLE IF NOT EXISTS retry_states (
	run_id TEXT NOT NULL,
	phase_number INTEGER NOT NULL,
	task_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('active', 'exhausted')) DEFAULT 'active',
	max_attempts INTEGER NOT NULL,
	base_delay_ms INTEGER NOT NULL,
	max_delay_ms INTEGER NOT NULL,
	attempts TEXT NOT NULL DEFAULT '[]', -- JSON array of {at, success, error}
	PRIMARY KEY (run_id, phase_number, task_id)
);

-- Escalations (failures requiring a human decision)
CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	phase_number INTEGER NOT NULL,
	role_id TEXT,
	task_id TEXT,
	reason TEXT NOT NULL,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 0,
	severity TEXT NOT NULL CHECK(severity IN ('low', 'medium', 'high')) DEFAULT 'medium',
	status TEXT NOT NULL CHECK(status IN ('open', 'resolved')) DEFAULT 'open',
	resolution TEXT,
	resolved_by TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	resolved_at DATETIME
);

-- Review chain state, one row per (run, phase)
CREATE TABLE IF NOT EXISTS review_chains (
	run_id TEXT NOT NULL,
	phase_number INTEGER NOT NULL,
	chain TEXT NOT NULL,     -- JSON array of reviewer roles
	current_index INTEGER NOT NULL DEFAULT 0,
	approvals TEXT NOT NULL DEFAULT '[]', -- JSON array of roles that approved
	fix_attempts INTEGER NOT NULL DEFAULT 0,
	last_instruction TEXT,
	status TEXT NOT NULL CHECK(status IN ('awaiting', 'fixing', 'complete', 'escalated')) DEFAULT 'awaiting',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (run_id, phase_number)
);

-- Durable scheduled jobs (restart-safe retry timers)
CREATE TABLE IF NOT EXISTS scheduled_jobs (
	key TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	run_id TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	fire_at DATETIME NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_name, status);
CREATE INDEX IF NOT EXISTS idx_escalations_run ON escalations(run_id, status);
CREATE INDEX IF NOT EXISTS idx_escalations_task ON escalations(run_id, phase_number, task_id, status);
CREATE INDEX IF NOT EXISTS idx_jobs_fire_at ON scheduled_jobs(fire_at);
`

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
