// Package baseline keeps response-shape fingerprints per check so that later
// runs can detect contract drift. Supports a local JSON file and Redis.
package baseline

import (
	"context"
	"fmt"
	"time"

	"galleyprobe/config"
)

// Snapshot is the recorded shape of every exchange one check performed.
type Snapshot struct {
	Check      string     `json:"check"`
	Exchanges  []Exchange `json:"exchanges"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// Exchange is one request/response pair reduced to its shape.
type Exchange struct {
	Method string `json:"method"`
	// Path has identifiers replaced by {id}
	Path        string `json:"path"`
	Status      int    `json:"status"`
	Fingerprint string `json:"fingerprint"`
	Shape       string `json:"shape,omitempty"`
}

// Store defines the interface for baseline storage.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the snapshot for a check.
	// Returns nil, nil if no baseline was recorded yet.
	Get(ctx context.Context, check string) (*Snapshot, error)

	// Set stores the snapshot, replacing any previous one for the same check.
	Set(ctx context.Context, snap *Snapshot) error

	Close() error
}

// New creates the baseline store selected by cfg.Baseline.Type.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Baseline.Type {
	case "", "local":
		return NewLocalStore(cfg.Baseline.Local.Path), nil
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			URL:    cfg.Baseline.Redis.URL,
			Prefix: cfg.Baseline.Redis.Key,
			TTL:    time.Duration(cfg.Baseline.Redis.TTL) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown baseline store type: %s", cfg.Baseline.Type)
	}
}
