// Package activitylog stores the per-project audit trail as append-only
// JSONL files under the foreman home directory.
package activitylog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/foreman/internal/ctxutil"
	"github.com/example/foreman/internal/ports/secondary"
)

// FileLog appends activity entries to {baseDir}/{project}/activity.jsonl.
type FileLog struct {
	baseDir string

	mu sync.Mutex
}

// NewFileLog creates a file-backed activity log rooted at baseDir.
func NewFileLog(baseDir string) *FileLog {
	return &FileLog{baseDir: baseDir}
}

// Append writes one entry to the project's log. Missing ID and timestamp
// are filled in here so callers only provide type, message and fields.
func (l *FileLog) Append(ctx context.Context, project string, entry secondary.ActivityEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if entry.Actor == "" {
		entry.Actor = ctxutil.ActorFromContext(ctx)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal activity entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.path(project)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append activity entry: %w", err)
	}
	return nil
}

// Tail returns up to limit most recent entries, newest last, optionally
// filtered by type. A missing log file means no activity yet.
func (l *FileLog) Tail(ctx context.Context, project string, limit int, typeFilter string) ([]secondary.ActivityEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path(project))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}
	defer f.Close()

	var entries []secondary.ActivityEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry secondary.ActivityEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// A torn final line from a crashed append is skipped, not fatal.
			continue
		}
		if typeFilter != "" && entry.Type != typeFilter {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activity log: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (l *FileLog) path(project string) string {
	return filepath.Join(l.baseDir, project, "activity.jsonl")
}

// Ensure FileLog implements the interface
var _ secondary.ActivityLog = (*FileLog)(nil)
