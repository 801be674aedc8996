package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const insertPostgreSQL = `
	INSERT INTO ` + tableName + ` (id, run_id, check_name, status, message,
		duration_ms, target, timestamp, details)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING`

// PostgreSQLStore implements Store and Reader for PostgreSQL databases.
type PostgreSQLStore struct {
	pool          *pgxpool.Pool
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewPostgreSQLStore creates a new PostgreSQL results store.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+tableName+` (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			check_name TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,
			target TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL,
			details JSONB
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
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &PostgreSQLStore{
		pool:          pool,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}
	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, CleanupInterval, store.cleanup)
	}
	return store, nil
}

// WriteBatch writes entries, using a transaction for batches of ten or more.
func (s *PostgreSQLStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if len(entries) < 10 {
		return s.writeBatchSmall(ctx, entries)
	}
	return s.writeBatchLarge(ctx, entries)
}

func (s *PostgreSQLStore) writeBatchSmall(ctx context.Context, entries []*Entry) error {
	var errs []error
	for _, e := range entries {
		_, err := s.pool.Exec(ctx, insertPostgreSQL, postgresArgs(e)...)
		if err != nil {
			slog.Warn("failed to insert check result", "error", err, "id", e.ID)
			errs = append(errs, fmt.Errorf("insert %s: %w", e.ID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to insert %d of %d check results: %w", len(errs), len(entries), errors.Join(errs...))
	}
	return nil
}

func (s *PostgreSQLStore) writeBatchLarge(ctx context.Context, entries []*Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, e := range entries {
		if _, err := tx.Exec(ctx, insertPostgreSQL, postgresArgs(e)...); err != nil {
			return fmt.Errorf("insert %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func postgresArgs(e *Entry) []any {
	var details any
	if b := marshalDetails(e.Details, e.ID); b != nil {
		details = string(b)
	}
	return []any{e.ID, e.RunID, e.Check, e.Status, e.Message, e.DurationMs, e.Target, e.Timestamp.UTC(), details}
}

// Flush is a no-op for PostgreSQL as writes are synchronous.
func (s *PostgreSQLStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. The pool is owned by the storage layer.
func (s *PostgreSQLStore) Close() error {
	if s.retentionDays > 0 {
		s.closeOnce.Do(func() {
			close(s.stopCleanup)
		})
	}
	return nil
}

func (s *PostgreSQLStore) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	result, err := s.pool.Exec(ctx, "DELETE FROM "+tableName+" WHERE timestamp < $1", cutoff)
	if err != nil {
		slog.Error("failed to cleanup old check results", "error", err)
		return
	}
	if result.RowsAffected() > 0 {
		slog.Info("cleaned up old check results", "deleted", result.RowsAffected())
	}
}

// ListRuns implements Reader.
func (s *PostgreSQLStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, MIN(target), MIN(timestamp) AS started,
			COUNT(*) FILTER (WHERE status = 'pass'),
			COUNT(*) FILTER (WHERE status = 'fail'),
			COUNT(*) FILTER (WHERE status = 'error')
		FROM `+tableName+`
		GROUP BY run_id
		ORDER BY started DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var r RunSummary
		var passed, failed, errored int64
		if err := rows.Scan(&r.RunID, &r.Target, &r.StartedAt, &passed, &failed, &errored); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Passed, r.Failed, r.Errored = int(passed), int(failed), int(errored)
		r.StartedAt = r.StartedAt.UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// ListEntries implements Reader.
func (s *PostgreSQLStore) ListEntries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, check_name, status, message, duration_ms, target, timestamp, details
		FROM `+tableName+`
		WHERE run_id = $1
		ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RunID, &e.Check, &e.Status, &e.Message, &e.DurationMs, &e.Target, &e.Timestamp, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}
	return entries, nil
}
