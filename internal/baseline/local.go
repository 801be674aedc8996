package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LocalStore implements Store with a single JSON file holding all checks.
type LocalStore struct {
	mu       sync.RWMutex
	filePath string
}

// NewLocalStore creates a file-backed store. An empty path disables persistence.
func NewLocalStore(filePath string) *LocalStore {
	return &LocalStore{filePath: filePath}
}

// Get returns the snapshot for check from the file.
func (s *LocalStore) Get(_ context.Context, check string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	snap, ok := all[check]
	if !ok {
		return nil, nil
	}
	return snap, nil
}

// Set rewrites the file with snap replacing the entry for its check.
func (s *LocalStore) Set(_ context.Context, snap *Snapshot) error {
	if snap == nil || snap.Check == "" {
		return fmt.Errorf("snapshot with a check name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filePath == "" {
		return nil
	}

	all, err := s.load()
	if err != nil {
		return err
	}
	all[snap.Check] = snap

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create baseline directory: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal baselines: %w", err)
	}

	// Write atomically using temp file + rename
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write baseline file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename baseline file: %w", err)
	}
	return nil
}

// Close is a no-op for the local store.
func (s *LocalStore) Close() error {
	return nil
}

// load must be called with s.mu held.
func (s *LocalStore) load() (map[string]*Snapshot, error) {
	all := make(map[string]*Snapshot)
	if s.filePath == "" {
		return all, nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return all, nil
		}
		return nil, fmt.Errorf("failed to read baseline file: %w", err)
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse baseline file: %w", err)
	}
	return all, nil
}
