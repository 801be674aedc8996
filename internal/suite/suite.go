// Package suite holds the galley contract checks and the runner that executes
// them outside of go test.
//
// A check is an ordinary function taking a TB, so the same code runs under
// go test with a *testing.T and under the CLI with the runner's collector.
package suite

import (
	"context"
	"fmt"
	"strings"

	"github.com/stretchr/testify/require"

	"galleyprobe/internal/core"
	"galleyprobe/internal/harness"
)

// TB is the subset of testing.TB a check needs. It satisfies testify's
// assert.TestingT and require.TestingT.
type TB interface {
	Errorf(format string, args ...any)
	FailNow()
	Helper()
	Logf(format string, args ...any)
}

// Check is a named contract check.
type Check struct {
	Name        string
	Description string
	Run         func(ctx context.Context, t TB, h harness.Harness)
}

// Default returns every check in execution order.
func Default() []Check {
	return []Check{
		{
			Name:        "status",
			Description: "GET and HEAD /i/status answer 200, HEAD without a body",
			Run:         Status,
		},
		{
			Name:        "metrics",
			Description: "GET /i/metrics exposes the http_request_duration_seconds histogram",
			Run:         Metrics,
		},
		{
			Name:        "conversation_v2",
			Description: "a conversation fetched through API v2 carries access_role_v2 and access_role \"activated\"",
			Run:         ConversationV2,
		},
	}
}

// Select returns the named checks in the order given.
// No names selects every check.
func Select(names []string) ([]Check, error) {
	all := Default()
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]Check, len(all))
	for _, c := range all {
		byName[c.Name] = c
	}

	selected := make([]Check, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, core.NewConfigError("", fmt.Sprintf("unknown check %q (known: %s)", name, strings.Join(Names(), ", ")))
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, c)
	}
	return selected, nil
}

// Names returns the names of every check.
func Names() []string {
	all := Default()
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = c.Name
	}
	return names
}

// errRecorder is implemented by TBs that distinguish harness errors from
// contract violations.
type errRecorder interface {
	RecordError(err error)
}

// mustSucceed stops the check when err is non-nil. Transport, configuration
// and fixture errors are recorded as errors rather than failures when the TB
// supports it.
func mustSucceed(t TB, err error) {
	t.Helper()
	if err == nil {
		return
	}
	if r, ok := t.(errRecorder); ok && !isContractViolation(err) {
		r.RecordError(err)
	}
	require.NoError(t, err)
}

func isContractViolation(err error) bool {
	return core.IsType(err, core.ErrorTypeAssertion) || core.IsType(err, core.ErrorTypeParse)
}
