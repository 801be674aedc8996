//go:build integration

// Package dbassert reads the results ledger straight from the database so
// tests can assert on what was persisted rather than on what the reader returns.
package dbassert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const resultsTable = "check_results"

// ResultEntry mirrors results.Entry for test assertions.
type ResultEntry struct {
	ID         string         `bson:"_id"`
	RunID      string         `bson:"run_id"`
	Check      string         `bson:"check"`
	Status     string         `bson:"status"`
	Message    string         `bson:"message"`
	DurationMs int64          `bson:"duration_ms"`
	Target     string         `bson:"target"`
	Timestamp  time.Time      `bson:"timestamp"`
	Details    map[string]any `bson:"details"`
}

// QueryResultsByRunID queries the entries of one run from PostgreSQL.
func QueryResultsByRunID(t *testing.T, pool *pgxpool.Pool, runID string) []ResultEntry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `
		SELECT id, run_id, check_name, status, message, duration_ms, target, timestamp, details
		FROM ` + resultsTable + `
		WHERE run_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := pool.Query(ctx, query, runID)
	require.NoError(t, err, "failed to query results")
	defer rows.Close()

	var entries []ResultEntry
	for rows.Next() {
		var entry ResultEntry
		var details []byte
		err := rows.Scan(
			&entry.ID, &entry.RunID, &entry.Check, &entry.Status, &entry.Message,
			&entry.DurationMs, &entry.Target, &entry.Timestamp, &details,
		)
		require.NoError(t, err, "failed to scan result row")

		if details != nil {
			require.NoError(t, json.Unmarshal(details, &entry.Details), "failed to decode details")
		}
		entries = append(entries, entry)
	}
	require.NoError(t, rows.Err(), "error iterating result rows")

	return entries
}

// QueryResultsByRunIDMongo queries the entries of one run from MongoDB.
func QueryResultsByRunIDMongo(t *testing.T, db *mongo.Database, runID string) []ResultEntry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := db.Collection(resultsTable).Find(ctx, bson.M{"run_id": runID}, opts)
	require.NoError(t, err, "failed to query results from MongoDB")
	defer cursor.Close(ctx)

	var entries []ResultEntry
	require.NoError(t, cursor.All(ctx, &entries), "failed to decode results")
	return entries
}

// ClearResults deletes every row of the results table in PostgreSQL.
func ClearResults(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx, "DELETE FROM "+resultsTable)
	require.NoError(t, err, "failed to clear results")
}

// ClearResultsMongo deletes every document of the results collection in MongoDB.
func ClearResultsMongo(t *testing.T, db *mongo.Database) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := db.Collection(resultsTable).DeleteMany(ctx, bson.M{})
	require.NoError(t, err, "failed to clear results")
}

// CountByStatus tallies entries per status.
func CountByStatus(entries []ResultEntry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Status]++
	}
	return counts
}
