package suite

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"sync"
)

// collector is the TB handed to checks run by the Runner.
type collector struct {
	mu       sync.Mutex
	failed   bool
	failures []string
	logs     []string
	err      error
}

func (c *collector) Errorf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = true
	c.failures = append(c.failures, summarize(fmt.Sprintf(format, args...)))
}

// FailNow stops the calling check goroutine.
func (c *collector) FailNow() {
	c.mu.Lock()
	c.failed = true
	c.mu.Unlock()
	runtime.Goexit()
}

func (c *collector) Helper() {}

func (c *collector) Logf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, fmt.Sprintf(format, args...))
}

// RecordError keeps the first harness error so the check is reported as errored.
func (c *collector) RecordError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *collector) recordPanic(p any) {
	c.RecordError(fmt.Errorf("panic: %v", p))
}

// outcome returns the status and message of the finished check.
func (c *collector) outcome() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.err != nil:
		return StatusError, c.err.Error()
	case c.failed:
		msg := strings.Join(c.failures, "; ")
		if msg == "" {
			msg = "check failed"
		}
		return StatusFail, msg
	default:
		return StatusPass, ""
	}
}

var testifyLabel = regexp.MustCompile(`^\s*(Error Trace|Error|Test|Messages):\s*(.*)$`)

// summarize reduces testify's labeled failure output to its Error and
// Messages sections on a single line. Diffs are dropped.
func summarize(msg string) string {
	var (
		parts   []string
		current string
		found   bool
	)
	for _, line := range strings.Split(msg, "\n") {
		if m := testifyLabel.FindStringSubmatch(line); m != nil {
			found = true
			current = m[1]
			line = m[2]
		}
		line = strings.Join(strings.Fields(line), " ")
		if line == "Diff:" {
			current = "Diff"
		}
		if line == "" || (current != "Error" && current != "Messages") {
			continue
		}
		parts = append(parts, line)
	}
	if !found {
		return strings.Join(strings.Fields(msg), " ")
	}
	return strings.Join(parts, " ")
}
