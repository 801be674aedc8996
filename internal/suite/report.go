package suite

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"galleyprobe/internal/baseline"
	"galleyprobe/internal/results"
)

// Check outcome statuses, shared with the results ledger.
const (
	StatusPass  = results.StatusPass
	StatusFail  = results.StatusFail
	StatusError = results.StatusError
)

// Result is the outcome of one check.
type Result struct {
	Check      string           `json:"check"`
	Status     string           `json:"status"`
	Message    string           `json:"message,omitempty"`
	DurationMs int64            `json:"duration_ms"`
	Drift      []baseline.Drift `json:"drift,omitempty"`
	Logs       []string         `json:"logs,omitempty"`
}

// Report is the outcome of one run.
type Report struct {
	RunID     string    `json:"run_id"`
	Target    string    `json:"target"`
	StartedAt time.Time `json:"started_at"`
	Results   []Result  `json:"results"`
}

// Failed reports whether any check did not pass.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Status != StatusPass {
			return true
		}
	}
	return false
}

// Counts returns the number of passed, failed and errored checks.
func (r *Report) Counts() (passed, failed, errored int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusError:
			errored++
		}
	}
	return passed, failed, errored
}

// WriteText writes a human readable report.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s against %s\n", r.RunID, r.Target)
	for _, res := range r.Results {
		fmt.Fprintf(&b, "%-5s %s (%dms)", strings.ToUpper(res.Status), res.Check, res.DurationMs)
		if res.Message != "" {
			fmt.Fprintf(&b, ": %s", res.Message)
		}
		b.WriteByte('\n')
		for _, d := range res.Drift {
			fmt.Fprintf(&b, "      drift: %s\n", d)
		}
	}
	passed, failed, errored := r.Counts()
	fmt.Fprintf(&b, "%d checks: %d passed, %d failed, %d errors\n", len(r.Results), passed, failed, errored)
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}
