// Package app wires configuration, the harness, the results ledger and the
// baseline store together for the galleyprobe command.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"galleyprobe/config"
	"galleyprobe/internal/baseline"
	"galleyprobe/internal/harness"
	"galleyprobe/internal/results"
	"galleyprobe/internal/suite"
)

// App holds the components a command needs and releases them on Shutdown.
type App struct {
	config    *config.Config
	logger    *slog.Logger
	harness   harness.Harness
	results   *results.Result
	baselines baseline.Store
	registry  *prometheus.Registry
	metrics   *suite.RunMetrics

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the options for creating an App.
type Config struct {
	// AppConfig is the loaded configuration.
	AppConfig *config.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Results opens the results ledger.
	Results bool

	// Baselines opens the baseline store.
	Baselines bool

	// HarnessOptions are passed to harness.New.
	HarnessOptions []harness.Option
}

// New creates an App. The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		config:   cfg.AppConfig,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	opts := append([]harness.Option{harness.WithLogger(logger)}, cfg.HarnessOptions...)
	h, err := harness.New(cfg.AppConfig, opts...)
	if err != nil {
		return nil, err
	}
	a.harness = h

	if cfg.Results {
		res, err := results.New(ctx, cfg.AppConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize results ledger: %w", err)
		}
		a.results = res
	}

	if cfg.Baselines {
		store, err := baseline.New(ctx, cfg.AppConfig)
		if err != nil {
			closeErr := a.closeResults()
			if closeErr != nil {
				return nil, fmt.Errorf("failed to initialize baseline store: %w (also: close error: %v)", err, closeErr)
			}
			return nil, fmt.Errorf("failed to initialize baseline store: %w", err)
		}
		a.baselines = store
	}

	a.metrics = suite.NewRunMetrics(a.registry)
	a.registry.MustRegister(results.PartialWriteFailures)

	a.logStartupInfo()
	return a, nil
}

// Harness returns the unversioned harness.
func (a *App) Harness() harness.Harness {
	return a.harness
}

// Registry returns the registry holding the run's metrics.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Reader returns the results reader, or nil when recording is disabled.
func (a *App) Reader() results.Reader {
	if a.results == nil {
		return nil
	}
	return a.results.Reader
}

// Runner returns a runner wired to the ledger, the metrics and, when open,
// the baseline store.
func (a *App) Runner(compare bool) *suite.Runner {
	opts := []suite.RunnerOption{
		suite.WithLogger(a.logger),
		suite.WithMetrics(a.metrics),
		suite.WithCompare(compare),
	}
	if a.results != nil {
		opts = append(opts, suite.WithResults(a.results.Logger))
	}
	if a.baselines != nil {
		opts = append(opts, suite.WithBaselines(a.baselines))
	}
	return suite.NewRunner(a.harness, opts...)
}

// Shutdown tears down components in dependency order:
// 1. Harness teardown (deletes fixtures under the "delete" cleanup policy).
// 2. Baseline store close.
// 3. Results ledger close (flushes pending entries).
//
// Shutdown is idempotent. It attempts every step and returns the joined errors.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	var errs []error

	if err := a.harness.Close(ctx); err != nil {
		a.logger.Error("teardown error", "error", err)
		errs = append(errs, fmt.Errorf("teardown: %w", err))
	}

	if a.baselines != nil {
		if err := a.baselines.Close(); err != nil {
			a.logger.Error("baseline store close error", "error", err)
			errs = append(errs, fmt.Errorf("baseline close: %w", err))
		}
	}

	if err := a.closeResults(); err != nil {
		a.logger.Error("results ledger close error", "error", err)
		errs = append(errs, fmt.Errorf("results close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

func (a *App) closeResults() error {
	if a.results == nil {
		return nil
	}
	return a.results.Close()
}

func (a *App) logStartupInfo() {
	cfg := a.config

	for _, name := range cfg.ServiceNames() {
		svc := cfg.Services[name]
		a.logger.Debug("service configured", "service", name, "url", svc.URL, "internal_url", svc.InternalURL)
	}

	mode := "path"
	if cfg.Harness.VersionHeader != "" {
		mode = "header"
	}
	a.logger.Debug("harness configured",
		"timeout_seconds", cfg.Harness.Timeout,
		"versioning", mode,
		"cleanup", cfg.Harness.Cleanup,
	)

	if a.results != nil && cfg.Results.Enabled {
		a.logger.Debug("results ledger enabled",
			"storage", cfg.Storage.Type,
			"retention_days", cfg.Results.RetentionDays,
		)
	}
	if a.baselines != nil {
		a.logger.Debug("baseline store enabled", "type", cfg.Baseline.Type)
	}
}
