package results

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps entries in process memory. It implements Store and Reader
// and is used when storage.type is "memory" and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	seen    map[string]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

// WriteBatch appends entries, ignoring IDs that were already written.
func (s *MemoryStore) WriteBatch(_ context.Context, entries []*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e == nil {
			continue
		}
		if _, ok := s.seen[e.ID]; ok {
			continue
		}
		s.seen[e.ID] = struct{}{}
		s.entries = append(s.entries, *e)
	}
	return nil
}

func (s *MemoryStore) Flush(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ListRuns implements Reader.
func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byRun := make(map[string]*RunSummary)
	for _, e := range s.entries {
		r, ok := byRun[e.RunID]
		if !ok {
			r = &RunSummary{RunID: e.RunID, Target: e.Target, StartedAt: e.Timestamp}
			byRun[e.RunID] = r
		}
		if e.Timestamp.Before(r.StartedAt) {
			r.StartedAt = e.Timestamp
		}
		if e.Target < r.Target {
			r.Target = e.Target
		}
		switch e.Status {
		case StatusPass:
			r.Passed++
		case StatusFail:
			r.Failed++
		case StatusError:
			r.Errored++
		}
	}

	runs := make([]RunSummary, 0, len(byRun))
	for _, r := range byRun {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].RunID > runs[j].RunID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if n := clampLimit(limit); len(runs) > n {
		runs = runs[:n]
	}
	return runs, nil
}

// ListEntries implements Reader.
func (s *MemoryStore) ListEntries(_ context.Context, runID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0)
	for _, e := range s.entries {
		if e.RunID == runID {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}
