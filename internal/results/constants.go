package results

import "time"

const (
	// BatchFlushThreshold is the number of entries that triggers an immediate flush.
	BatchFlushThreshold = 100

	// CleanupInterval is how often the cleanup goroutine deletes expired entries.
	CleanupInterval = 1 * time.Hour

	// tableName is the SQL table (and MongoDB collection) holding entries.
	tableName = "check_results"

	// timestampLayout is fixed-width so stored timestamps sort lexically in SQLite.
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
)
