// Package sqlite_test contains integration tests for SQLite repositories.
//
// This file is the single point where the database schema is loaded for
// tests. All test setup uses db.GetSchemaSQL() so tests always run against
// the authoritative schema, preventing drift between test and production.
// Do not hardcode CREATE TABLE statements in test files.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/foreman/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedProject inserts a test project and returns its name.
func seedProject(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	if name == "" {
		name = "demo"
	}
	_, err := db.Exec("INSERT INTO projects (name, repo_dir, base_branch) VALUES (?, ?, ?)", name, "/tmp/repos/"+name, "main")
	if err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
	return name
}

// seedRun inserts a running run and returns its ID.
func seedRun(t *testing.T, db *sql.DB, id, project string) string {
	t.Helper()
	if id == "" {
		id = "run-001"
	}
	if project == "" {
		project = seedProject(t, db, "")
	}
	_, err := db.Exec(
		"INSERT INTO runs (id, project_name, current_phase, status, base_branch, repo_dir) VALUES (?, ?, 1, 'running', 'main', ?)",
		id, project, "/tmp/repos/"+project,
	)
	if err != nil {
		t.Fatalf("failed to seed run: %v", err)
	}
	return id
}

// seedPhase inserts a phase state row for a run.
func seedPhase(t *testing.T, db *sql.DB, runID string, phase int, expected string) {
	t.Helper()
	if expected == "" {
		expected = `["T-001"]`
	}
	_, err := db.Exec(
		"INSERT INTO phase_states (run_id, phase_number, phase_name, base_branch, repo_dir, expected_workers) VALUES (?, ?, 'build', 'main', '/tmp/repo', ?)",
		runID, phase, expected,
	)
	if err != nil {
		t.Fatalf("failed to seed phase state: %v", err)
	}
}
