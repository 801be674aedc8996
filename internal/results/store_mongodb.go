package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrPartialWrite indicates that a batch write only partially succeeded.
var ErrPartialWrite = errors.New("partial write failure")

// PartialWriteError reports how many entries of a batch MongoDB rejected.
type PartialWriteError struct {
	TotalEntries int
	FailedCount  int
	Cause        mongo.BulkWriteException
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial check result insert: %d of %d entries failed: %v",
		e.FailedCount, e.TotalEntries, e.Cause.Error())
}

func (e *PartialWriteError) Unwrap() error {
	return ErrPartialWrite
}

// PartialWriteFailures counts MongoDB batches that were only partially written.
// It is registered by the caller that exposes metrics.
var PartialWriteFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "galleyprobe_results_partial_write_failures_total",
		Help: "Total number of partial write failures when inserting check results to MongoDB",
	},
)

// MongoDBStore implements Store and Reader for MongoDB.
// Retention is enforced by a TTL index.
type MongoDBStore struct {
	collection *mongo.Collection
}

// NewMongoDBStore creates a new MongoDB results store.
func NewMongoDBStore(ctx context.Context, database *mongo.Database, retentionDays int) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	collection := database.Collection(tableName)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "run_id", Value: 1}}},
		{Keys: bson.D{{Key: "check", Value: 1}}},
	}

	// MongoDB doesn't allow a second index on timestamp next to a TTL index.
	if retentionDays > 0 {
		ttlSeconds := int32(int64(retentionDays) * 24 * 60 * 60)
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetExpireAfterSeconds(ttlSeconds),
		})
	} else {
		indexes = append(indexes, mongo.IndexModel{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		})
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		slog.Warn("failed to create some MongoDB indexes for check results", "error", err)
	}

	return &MongoDBStore{collection: collection}, nil
}

// WriteBatch writes entries with an unordered InsertMany.
func (s *MongoDBStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]any, len(entries))
	for i, e := range entries {
		docs[i] = e
	}

	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		var bulkErr mongo.BulkWriteException
		if errors.As(err, &bulkErr) {
			failedCount := len(bulkErr.WriteErrors)
			slog.Warn("partial check result insert failure",
				"total", len(entries),
				"failed", failedCount,
				"succeeded", len(entries)-failedCount,
			)
			PartialWriteFailures.Inc()
			return &PartialWriteError{
				TotalEntries: len(entries),
				FailedCount:  failedCount,
				Cause:        bulkErr,
			}
		}
		return fmt.Errorf("failed to insert check results: %w", err)
	}
	return nil
}

// Flush is a no-op for MongoDB as writes are synchronous.
func (s *MongoDBStore) Flush(_ context.Context) error {
	return nil
}

// Close is a no-op for MongoDB as the client is managed by the storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}

// ListRuns implements Reader.
func (s *MongoDBStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	countStatus := func(status string) bson.D {
		return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{"$status", status}}}, 1, 0,
		}}}}}
	}

	pipeline := bson.A{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$run_id"},
			{Key: "target", Value: bson.D{{Key: "$min", Value: "$target"}}},
			{Key: "started_at", Value: bson.D{{Key: "$min", Value: "$timestamp"}}},
			{Key: "passed", Value: countStatus(StatusPass)},
			{Key: "failed", Value: countStatus(StatusFail)},
			{Key: "errored", Value: countStatus(StatusError)},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "started_at", Value: -1}}}},
		bson.D{{Key: "$limit", Value: clampLimit(limit)}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate runs: %w", err)
	}
	defer cursor.Close(ctx)

	runs := make([]RunSummary, 0)
	for cursor.Next(ctx) {
		var row struct {
			RunID     string    `bson:"_id"`
			Target    string    `bson:"target"`
			StartedAt time.Time `bson:"started_at"`
			Passed    int       `bson:"passed"`
			Failed    int       `bson:"failed"`
			Errored   int       `bson:"errored"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode run: %w", err)
		}
		runs = append(runs, RunSummary{
			RunID:     row.RunID,
			Target:    row.Target,
			StartedAt: row.StartedAt.UTC(),
			Passed:    row.Passed,
			Failed:    row.Failed,
			Errored:   row.Errored,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs cursor: %w", err)
	}
	return runs, nil
}

// ListEntries implements Reader.
func (s *MongoDBStore) ListEntries(ctx context.Context, runID string) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.D{{Key: "run_id", Value: runID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]Entry, 0)
	for cursor.Next(ctx) {
		var e Entry
		if err := cursor.Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to decode entry: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries cursor: %w", err)
	}
	return entries, nil
}
