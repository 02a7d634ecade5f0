// Package db owns the SQLite connection and schema lifecycle.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var (
	conn          *sql.DB
	dbInitialized bool
	pathOverride  string
)

// SetPath overrides the database location. Must be called before the
// first GetDB (the CLI wires this from global config).
func SetPath(path string) {
	pathOverride = path
}

// GetDB returns the database connection, initializing if needed
func GetDB() (*sql.DB, error) {
	if conn != nil {
		return conn, nil
	}

	dbPath, err := resolvePath()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations on first connection (but avoid recursion)
	if !dbInitialized {
		dbInitialized = true
		if err := InitSchema(); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return conn, nil
}

// InitSchema creates the schema on a fresh database and applies pending
// migrations on an existing one.
func InitSchema() error {
	if _, err := conn.Exec(SchemaSQL); err != nil {
		return err
	}
	return RunMigrations(conn)
}

// Close closes the database connection
func Close() error {
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func resolvePath() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".foreman", "foreman.db"), nil
}
