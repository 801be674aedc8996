// Package results records check outcomes so past runs can be inspected.
// Entries are buffered in memory and written to the configured backend in batches.
package results

import (
	"context"
	"time"
)

// Check outcome statuses.
const (
	StatusPass  = "pass"
	StatusFail  = "fail"
	StatusError = "error"
)

// Store defines the interface for results storage backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// WriteBatch writes multiple entries to storage.
	// This is called by the Logger when flushing buffered entries.
	WriteBatch(ctx context.Context, entries []*Entry) error

	// Flush forces any pending writes to complete.
	Flush(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Entry is the recorded outcome of one check in one run.
type Entry struct {
	// ID is a unique identifier for this entry (UUID)
	ID string `json:"id" bson:"_id"`

	// RunID groups the entries of one invocation of the suite
	RunID string `json:"run_id" bson:"run_id"`

	Check      string    `json:"check" bson:"check"`
	Status     string    `json:"status" bson:"status"`
	Message    string    `json:"message,omitempty" bson:"message,omitempty"`
	DurationMs int64     `json:"duration_ms" bson:"duration_ms"`
	Target     string    `json:"target" bson:"target"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`

	// Details holds check-specific data such as baseline drift
	Details map[string]any `json:"details,omitempty" bson:"details,omitempty"`
}

// Config holds results ledger configuration
type Config struct {
	// Enabled controls whether results are recorded
	Enabled bool

	// BufferSize is the number of entries to buffer before dropping
	BufferSize int

	// FlushInterval is how often to flush buffered entries
	FlushInterval time.Duration

	// RetentionDays is how long to keep results (0 = forever)
	RetentionDays int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		RetentionDays: 30,
	}
}
