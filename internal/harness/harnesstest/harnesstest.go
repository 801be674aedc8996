// Package harnesstest wires harnesses into Go tests.
package harnesstest

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"galleyprobe/config"
	"galleyprobe/internal/fakegalley"
	"galleyprobe/internal/harness"
)

// New builds a harness from the environment's configuration and runs its
// teardown when the test finishes.
func New(t testing.TB, opts ...harness.Option) harness.Harness {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return FromConfig(t, cfg, opts...)
}

// FromConfig builds a harness from cfg and runs its teardown when the test finishes.
func FromConfig(t testing.TB, cfg *config.Config, opts ...harness.Option) harness.Harness {
	t.Helper()
	h, err := harness.New(cfg, opts...)
	if err != nil {
		t.Fatalf("create harness: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.Close(ctx); err != nil {
			t.Errorf("teardown: %v", err)
		}
	})
	return h
}

// Fake starts an in-process fake galley and returns a harness whose galley
// and brig services both point at it. mutate may adjust the configuration
// before the harness is built.
func Fake(t testing.TB, mutate func(*config.Config)) (harness.Harness, *fakegalley.Server) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	srv := fakegalley.New(&fakegalley.Config{
		VersionHeader: cfg.Harness.VersionHeader,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	cfg.Services = map[string]config.ServiceConfig{
		"galley": {URL: ts.URL},
		"brig":   {URL: ts.URL},
	}
	return FromConfig(t, cfg), srv
}
