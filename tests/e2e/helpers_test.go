//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"galleyprobe/internal/cli"
	"galleyprobe/internal/suite"
)

// probeEnv isolates configuration and state for one test and points both
// services at galleyURL.
func probeEnv(t *testing.T, galleyURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("GALLEYPROBE_CONFIG", "")
	t.Setenv("ASSIGNED_PORTS", "")
	t.Setenv("GALLEY_URL", galleyURL)
	t.Setenv("BRIG_URL", galleyURL)
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "results.db"))
	t.Setenv("BASELINE_TYPE", "local")
	t.Setenv("BASELINE_PATH", filepath.Join(dir, "baselines.json"))
	t.Setenv("HARNESS_VERSION_HEADER", "")
	t.Setenv("HARNESS_CLEANUP", "none")
	t.Setenv("LOG_FORMAT", "json")
	return dir
}

// probe runs the CLI in-process and returns stdout and the exit code.
func probe(t *testing.T, args ...string) (string, int) {
	t.Helper()
	cmd := cli.NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil {
		t.Logf("galleyprobe %v: %v\nstderr:\n%s", args, err, stderr.String())
	}
	return stdout.String(), cli.GetExitCode(err)
}

// probeJSON runs the CLI with --format json and decodes the report.
func probeJSON(t *testing.T, args ...string) (*suite.Report, int) {
	t.Helper()
	out, code := probe(t, append(args, "--format", "json")...)
	var report suite.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report), "stdout: %s", out)
	return &report, code
}

func statuses(r *suite.Report) map[string]string {
	m := make(map[string]string, len(r.Results))
	for _, res := range r.Results {
		m[res.Check] = res.Status
	}
	return m
}
