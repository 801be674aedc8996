package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SQLite has a default limit of 999 bindable parameters per query.
const (
	maxSQLiteParams   = 999
	columnsPerEntry   = 9
	maxEntriesPerStmt = maxSQLiteParams / columnsPerEntry
)

// SQLiteStore implements Store for SQLite databases.
type SQLiteStore struct {
	db            *sql.DB
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewSQLiteStore creates a new SQLite results store.
// It creates the table if it doesn't exist and starts
// a background cleanup goroutine if retention is configured.
func NewSQLiteStore(db *sql.DB, retentionDays int) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			check_name TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			target TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			details JSON
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", tableName, err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_check_results_run_id ON " + tableName + "(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_check_results_timestamp ON " + tableName + "(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_check_results_check ON " + tableName + "(check_name)",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &SQLiteStore{
		db:            db,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}
	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, CleanupInterval, store.cleanup)
	}
	return store, nil
}

// WriteBatch writes entries using multi-row inserts chunked to the parameter limit.
func (s *SQLiteStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	for i := 0; i < len(entries); i += maxEntriesPerStmt {
		end := min(i+maxEntriesPerStmt, len(entries))
		chunk := entries[i:end]

		placeholders := make([]string, len(chunk))
		values := make([]any, 0, len(chunk)*columnsPerEntry)
		for j, e := range chunk {
			placeholders[j] = "(?, ?, ?, ?, ?, ?, ?, ?, ?)"

			var details any
			if b := marshalDetails(e.Details, e.ID); b != nil {
				details = string(b)
			}
			values = append(values,
				e.ID,
				e.RunID,
				e.Check,
				e.Status,
				e.Message,
				e.DurationMs,
				e.Target,
				e.Timestamp.UTC().Format(timestampLayout),
				details,
			)
		}

		query := `INSERT OR IGNORE INTO ` + tableName + ` (id, run_id, check_name, status, message,
			duration_ms, target, timestamp, details) VALUES ` + strings.Join(placeholders, ",")
		if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
			return fmt.Errorf("failed to insert results batch %d: %w", i/maxEntriesPerStmt, err)
		}
	}
	return nil
}

// Flush is a no-op for SQLite as writes are synchronous.
func (s *SQLiteStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. The DB is owned by the storage layer.
func (s *SQLiteStore) Close() error {
	if s.retentionDays > 0 {
		s.closeOnce.Do(func() {
			close(s.stopCleanup)
		})
	}
	return nil
}

// cleanup deletes entries older than the retention period.
func (s *SQLiteStore) cleanup() {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays).UTC().Format(timestampLayout)

	result, err := s.db.Exec("DELETE FROM "+tableName+" WHERE timestamp < ?", cutoff)
	if err != nil {
		slog.Error("failed to cleanup old check results", "error", err)
		return
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		slog.Info("cleaned up old check results", "deleted", n)
	}
}

// ListRuns implements Reader.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, MIN(target), MIN(timestamp) AS started,
			SUM(CASE WHEN status = 'pass' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'fail' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END)
		FROM `+tableName+`
		GROUP BY run_id
		ORDER BY started DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var r RunSummary
		var started string
		if err := rows.Scan(&r.RunID, &r.Target, &started, &r.Passed, &r.Failed, &r.Errored); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if r.StartedAt, err = time.Parse(timestampLayout, started); err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", started, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// ListEntries implements Reader.
func (s *SQLiteStore) ListEntries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, check_name, status, message, duration_ms, target, timestamp, details
		FROM `+tableName+`
		WHERE run_id = ?
		ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var ts string
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.Check, &e.Status, &e.Message, &e.DurationMs, &e.Target, &ts, &details); err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		if e.Timestamp, err = time.Parse(timestampLayout, ts); err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				slog.Warn("failed to unmarshal entry details", "error", err, "id", e.ID)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}
	return entries, nil
}

// marshalDetails marshals details to JSON for SQL storage.
// Returns nil if details is empty, or "{}" if marshaling fails.
func marshalDetails(details map[string]any, entryID string) []byte {
	if len(details) == 0 {
		return nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		slog.Warn("failed to marshal entry details", "error", err, "id", entryID)
		return []byte("{}")
	}
	return b
}
