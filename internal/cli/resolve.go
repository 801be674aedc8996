package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"galleyprobe/internal/harness"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Internal   bool
	APIVersion int
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve SERVICE PATH",
		Short: "Print the URL a check would request",
		Long: `Resolve a service path against the loaded configuration, applying the
internal base URL and the API version prefix the way checks do.

Examples:
  galleyprobe resolve galley /i/status --internal
  galleyprobe resolve galley /conversations --api-version 2`,
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.Internal, "internal", false, "resolve against the internal base URL")
	cmd.Flags().IntVar(&opts.APIVersion, "api-version", 0, "API version to apply (0 for unversioned)")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, service, path string) error {
	if opts.APIVersion < 0 {
		return NewExitError(ExitCommandError, "--api-version must not be negative")
	}
	cfg, logger, err := opts.load(cmd)
	if err != nil {
		return err
	}

	h, err := harness.New(cfg, harness.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.APIVersion > 0 {
		h = h.Versioned(opts.APIVersion)
	}

	url, err := h.Resolve(service, path, opts.Internal)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot resolve", err)
	}
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]string{"service": service, "url": url})
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), url)
	return err
}
