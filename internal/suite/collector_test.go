package suite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galleyprobe/internal/core"
)

func runCollected(fn func(t TB)) *collector {
	col := &collector{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				col.recordPanic(p)
			}
		}()
		fn(col)
	}()
	<-done
	return col
}

func TestCollector_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		fn         func(t TB)
		wantStatus string
		wantMsg    string
	}{
		{
			name:       "pass",
			fn:         func(t TB) { assert.True(t, true) },
			wantStatus: StatusPass,
		},
		{
			name:       "assert keeps going",
			fn:         func(t TB) { assert.Equal(t, 200, 500); assert.Equal(t, "a", "b") },
			wantStatus: StatusFail,
			wantMsg:    "Not equal:",
		},
		{
			name: "require stops",
			fn: func(t TB) {
				require.Equal(t, 201, 403, "POST /conversations")
				panic("unreachable")
			},
			wantStatus: StatusFail,
			wantMsg:    "POST /conversations",
		},
		{
			name:       "panic",
			fn:         func(t TB) { panic("boom") },
			wantStatus: StatusError,
			wantMsg:    "panic: boom",
		},
		{
			name: "transport error",
			fn: func(t TB) {
				mustSucceed(t, core.NewTransportError("GET", "http://127.0.0.1:1/i/status", errors.New("connection refused")))
			},
			wantStatus: StatusError,
			wantMsg:    "transport_error",
		},
		{
			name: "parse error is a failure",
			fn: func(t TB) {
				mustSucceed(t, core.NewParseError("invalid JSON body", errors.New("eof")))
			},
			wantStatus: StatusFail,
			wantMsg:    "parse_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := runCollected(tt.fn).outcome()
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantMsg == "" {
				assert.Empty(t, msg)
			} else {
				assert.Contains(t, msg, tt.wantMsg)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	testifyOutput := "\n\tError Trace:\t/src/checks.go:42\n" +
		"\tError:      \tNot equal: \n" +
		"\t            \texpected: 200\n" +
		"\t            \tactual  : 503\n" +
		"\tMessages:   \tGET /i/status\n"

	assert.Equal(t, "Not equal: expected: 200 actual : 503 GET /i/status", summarize(testifyOutput))
	assert.Equal(t, "plain message", summarize("  plain\n message "))
}

func TestCollector_Logf(t *testing.T) {
	col := runCollected(func(t TB) { t.Logf("created %d users", 2) })
	assert.Equal(t, []string{"created 2 users"}, col.logs)
}
