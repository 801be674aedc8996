package results

import (
	"context"
	"time"
)

// RunSummary aggregates the entries of one run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Target    string    `json:"target"`
	StartedAt time.Time `json:"started_at"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Errored   int       `json:"errored"`
}

// Reader provides read access to recorded results.
type Reader interface {
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// ListEntries returns the entries of one run in recording order.
	ListEntries(ctx context.Context, runID string) ([]Entry, error)
}

// clampLimit defaults limit to 20 and caps it at 200.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 200 {
		return 200
	}
	return limit
}
