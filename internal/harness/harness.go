// Package harness issues HTTP requests against a running galley deployment
// and hands the responses to contract checks.
//
// A Harness is a value: views created with Versioned or WithObserver share
// configuration, HTTP client and teardown stack with the harness they were
// derived from, but never modify it.
package harness

import (
	"context"
	"log/slog"
	"net/http"

	"galleyprobe/config"
	"galleyprobe/internal/httpclient"
)

// Harness resolves endpoints and performs requests against the services under test.
type Harness struct {
	cfg      *config.Config
	client   *http.Client
	logger   *slog.Logger
	version  int
	observer Observer
	teardown *Teardown
}

// Option configures a Harness created by New.
type Option func(*Harness)

// WithHTTPClient replaces the client built from configuration.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Harness) {
		h.client = c
	}
}

// WithLogger sets the logger used for per-request debug logging.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// New creates an unversioned harness from cfg.
func New(cfg *config.Config, opts ...Option) (Harness, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return Harness{}, wrapConfigError(err)
	}

	h := Harness{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&h)
	}
	if h.client == nil {
		clientCfg := httpclient.FromConfig(cfg)
		h.client = httpclient.NewHTTPClient(&clientCfg)
	}
	if cfg.Harness.Cleanup == config.CleanupDelete {
		h.teardown = &Teardown{}
	}
	return h, nil
}

// Versioned returns a view whose external requests target API version n.
// Version 0 means the service default.
func (h Harness) Versioned(n int) Harness {
	h.version = n
	return h
}

// Version returns the API version this view targets.
func (h Harness) Version() int {
	return h.version
}

// WithObserver returns a view that reports every completed exchange to fn.
func (h Harness) WithObserver(fn Observer) Harness {
	h.observer = fn
	return h
}

// Config returns the configuration the harness was built from.
func (h Harness) Config() *config.Config {
	return h.cfg
}

// Close runs the registered teardown actions, most recent first.
// It is a no-op when the cleanup policy is "none".
func (h Harness) Close(ctx context.Context) error {
	if h.teardown == nil {
		return nil
	}
	return h.teardown.Run(ctx)
}

// plain returns an unversioned, unobserved view for fixture and teardown traffic.
func (h Harness) plain() Harness {
	h.version = 0
	h.observer = nil
	return h
}
