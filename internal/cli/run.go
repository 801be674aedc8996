package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"galleyprobe/internal/app"
	"galleyprobe/internal/suite"
)

// RunOptions holds flags for the run and record commands.
type RunOptions struct {
	*RootOptions
	Checks          []string
	CompareBaseline bool
	MetricsTextfile string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run contract checks",
		Long: `Run contract checks against the configured galley deployment.

Exit codes:
  0 - All checks passed
  1 - One or more checks failed or errored
  2 - Command error (invalid configuration, unknown check, storage failure)

Examples:
  galleyprobe run
  galleyprobe run --check status --check metrics
  galleyprobe run --compare-baseline --format json`,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecks(cmd, opts, false)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Checks, "check", nil, "check to run (repeatable; default all: "+joinNames()+")")
	cmd.Flags().BoolVar(&opts.CompareBaseline, "compare-baseline", false, "report drift from recorded response-shape baselines")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write run metrics in Prometheus text format to this file")

	return cmd
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Run checks and store their response shapes as baselines",
		Long: `Run contract checks and record the response shape of every passing
check in the baseline store. Later runs with --compare-baseline report
differences from these shapes.`,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecks(cmd, opts, true)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Checks, "check", nil, "check to record (repeatable; default all)")

	return cmd
}

func runChecks(cmd *cobra.Command, opts *RunOptions, record bool) error {
	checks, err := suite.Select(opts.Checks)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --check", err)
	}

	cfg, logger, err := opts.load(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, app.Config{
		AppConfig: cfg,
		Logger:    logger,
		Results:   true,
		Baselines: record || opts.CompareBaseline,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	runner := a.Runner(opts.CompareBaseline)
	var (
		report   *suite.Report
		storeErr error
	)
	if record {
		report, storeErr = runner.Record(ctx, checks)
		if report == nil {
			return WrapExitError(ExitCommandError, "failed to store baselines", storeErr)
		}
	} else {
		report = runner.Run(ctx, checks)
	}

	// The report of checks that ran is written even when storing their baselines failed.
	if err := writeReport(cmd.OutOrStdout(), opts.Format, report); err != nil {
		return err
	}
	if storeErr != nil {
		return WrapExitError(ExitCommandError, "failed to store baselines", storeErr)
	}
	if opts.MetricsTextfile != "" {
		if err := writeMetrics(opts.MetricsTextfile, a.Registry()); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if report.Failed() {
		_, failed, errored := report.Counts()
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d checks did not pass", failed+errored, len(report.Results)))
	}
	return nil
}

func writeReport(w io.Writer, format string, report *suite.Report) error {
	if format == "json" {
		return report.WriteJSON(w)
	}
	return report.WriteText(w)
}

func writeMetrics(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

func joinNames() string {
	return strings.Join(suite.Names(), ", ")
}
