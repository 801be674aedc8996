package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"galleyprobe/internal/baseline"
	"galleyprobe/internal/harness"
	"galleyprobe/internal/results"
)

// Runner executes checks one after another and reports their outcomes.
type Runner struct {
	h         harness.Harness
	results   results.LoggerInterface
	baselines baseline.Store
	compare   bool
	metrics   *RunMetrics
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithResults records every check outcome in the results ledger.
func WithResults(l results.LoggerInterface) RunnerOption {
	return func(r *Runner) {
		r.results = l
	}
}

// WithBaselines enables response-shape capture against store.
func WithBaselines(store baseline.Store) RunnerOption {
	return func(r *Runner) {
		r.baselines = store
	}
}

// WithCompare makes Run report drift from the stored baselines.
func WithCompare(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.compare = enabled
	}
}

// WithMetrics counts every check outcome in m.
func WithMetrics(m *RunMetrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithLogger sets the logger for per-check progress.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithClock replaces time.Now and the run ID generator.
func WithClock(now func() time.Time, newID func() string) RunnerOption {
	return func(r *Runner) {
		r.now = now
		if newID != nil {
			r.newID = newID
		}
	}
}

// NewRunner creates a Runner for h.
func NewRunner(h harness.Harness, opts ...RunnerOption) *Runner {
	r := &Runner{
		h:       h,
		results: &results.NoopLogger{},
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes checks sequentially and returns the report.
// A failing or panicking check never stops the checks after it.
func (r *Runner) Run(ctx context.Context, checks []Check) *Report {
	report := r.newReport()
	for _, c := range checks {
		res, snap := r.runOne(ctx, c)
		if r.compare && r.baselines != nil && res.Status == StatusPass {
			res.Drift = r.drift(ctx, snap)
		}
		r.record(report, res)
	}
	return report
}

// Record executes checks and stores a fresh baseline for each one that passes.
func (r *Runner) Record(ctx context.Context, checks []Check) (*Report, error) {
	if r.baselines == nil {
		return nil, errors.New("recording baselines requires a baseline store")
	}
	report := r.newReport()
	var errs []error
	for _, c := range checks {
		res, snap := r.runOne(ctx, c)
		if res.Status == StatusPass {
			if err := r.baselines.Set(ctx, snap); err != nil {
				errs = append(errs, fmt.Errorf("store baseline %s: %w", c.Name, err))
			} else {
				res.Logs = append(res.Logs, fmt.Sprintf("baseline recorded (%d exchanges)", len(snap.Exchanges)))
			}
		}
		r.record(report, res)
	}
	return report, errors.Join(errs...)
}

func (r *Runner) newReport() *Report {
	var target string
	if cfg := r.h.Config(); cfg != nil {
		target = cfg.Services["galley"].URL
	}
	return &Report{
		RunID:     r.newID(),
		Target:    target,
		StartedAt: r.now().UTC(),
		Results:   make([]Result, 0),
	}
}

// runOne runs c in its own goroutine so that FailNow ends only this check.
func (r *Runner) runOne(ctx context.Context, c Check) (Result, *baseline.Snapshot) {
	col := &collector{}
	snap := &baseline.Snapshot{Check: c.Name, Exchanges: make([]baseline.Exchange, 0)}

	var mu sync.Mutex
	h := r.h
	if r.baselines != nil {
		h = h.WithObserver(func(ex harness.Exchange) {
			mu.Lock()
			defer mu.Unlock()
			snap.Exchanges = append(snap.Exchanges, baseline.NewExchange(ex.Method, ex.Path, ex.Status, ex.Body))
		})
	}

	start := r.now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				col.recordPanic(p)
			}
		}()
		c.Run(ctx, col, h)
	}()
	<-done

	end := r.now()
	status, msg := col.outcome()
	snap.RecordedAt = end.UTC()

	res := Result{
		Check:      c.Name,
		Status:     status,
		Message:    msg,
		DurationMs: end.Sub(start).Milliseconds(),
		Logs:       col.logs,
	}
	r.logger.Debug("check finished", "check", c.Name, "status", status, "duration_ms", res.DurationMs)

	mu.Lock()
	defer mu.Unlock()
	return res, snap
}

func (r *Runner) drift(ctx context.Context, snap *baseline.Snapshot) []baseline.Drift {
	recorded, err := r.baselines.Get(ctx, snap.Check)
	if err != nil {
		r.logger.Warn("failed to load baseline", "check", snap.Check, "error", err)
		return nil
	}
	if recorded == nil {
		r.logger.Info("no baseline recorded", "check", snap.Check)
		return nil
	}
	drifts := baseline.Compare(recorded, snap)
	for _, d := range drifts {
		r.logger.Warn("contract drift", "check", snap.Check, "drift", d.String())
	}
	return drifts
}

func (r *Runner) record(report *Report, res Result) {
	report.Results = append(report.Results, res)
	r.metrics.observe(res)

	entry := &results.Entry{
		ID:         uuid.NewString(),
		RunID:      report.RunID,
		Check:      res.Check,
		Status:     res.Status,
		Message:    res.Message,
		DurationMs: res.DurationMs,
		Target:     report.Target,
		Timestamp:  r.now().UTC(),
	}
	if len(res.Drift) > 0 {
		drift := make([]string, len(res.Drift))
		for i, d := range res.Drift {
			drift[i] = d.String()
		}
		entry.Details = map[string]any{"drift": drift}
	}
	r.results.Write(entry)

	switch res.Status {
	case StatusPass:
		r.logger.Info("check passed", "check", res.Check)
	case StatusFail:
		r.logger.Warn("check failed", "check", res.Check, "message", res.Message)
	default:
		r.logger.Error("check errored", "check", res.Check, "message", res.Message)
	}
}
