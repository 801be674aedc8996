package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"galleyprobe/internal/app"
	"galleyprobe/internal/results"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
	RunID string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded check runs",
		Long: `List recent runs from the results ledger, newest first, or the
individual check outcomes of one run with --run.`,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (max 200)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the entries of this run")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cfg, logger, err := opts.load(cmd)
	if err != nil {
		return err
	}
	if !cfg.Results.Enabled {
		return NewExitError(ExitCommandError, "results recording is disabled (results.enabled)")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, app.Config{AppConfig: cfg, Logger: logger, Results: true})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	defer func() {
		if err := a.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	reader := a.Reader()
	if reader == nil {
		return NewExitError(ExitCommandError, "storage backend does not support reading results")
	}

	out := cmd.OutOrStdout()
	if opts.RunID != "" {
		entries, err := reader.ListEntries(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		if len(entries) == 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("run %q not found", opts.RunID))
		}
		if opts.Format == "json" {
			return writeJSON(out, entries)
		}
		return writeEntries(out, entries)
	}

	runs, err := reader.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if opts.Format == "json" {
		if runs == nil {
			runs = []results.RunSummary{}
		}
		return writeJSON(out, runs)
	}
	return writeRuns(out, runs)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeRuns(w io.Writer, runs []results.RunSummary) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tTARGET\tPASS\tFAIL\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
			r.RunID, r.StartedAt.UTC().Format(time.RFC3339), r.Target, r.Passed, r.Failed, r.Errored)
	}
	return tw.Flush()
}

func writeEntries(w io.Writer, entries []results.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tDURATION\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%dms\t%s\n", e.Check, e.Status, e.DurationMs, e.Message)
	}
	return tw.Flush()
}
