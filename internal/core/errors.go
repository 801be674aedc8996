// Package core provides the error taxonomy shared by the harness, the check suite and the CLI.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeConfig indicates an unknown service or an invalid configuration
	ErrorTypeConfig ErrorType = "config_error"
	// ErrorTypeTransport indicates a connection, DNS or timeout failure
	ErrorTypeTransport ErrorType = "transport_error"
	// ErrorTypeAssertion indicates a contract violation recorded by a check
	ErrorTypeAssertion ErrorType = "assertion_failure"
	// ErrorTypeParse indicates a body that could not be decoded as requested
	ErrorTypeParse ErrorType = "parse_error"
	// ErrorTypeFixture indicates that fixture provisioning got an unexpected answer
	ErrorTypeFixture ErrorType = "fixture_error"
)

// HarnessError is the base error type for all harness errors
type HarnessError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Service    string    `json:"service,omitempty"`
	Method     string    `json:"method,omitempty"`
	URL        string    `json:"url,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	// Original error for debugging
	Err error `json:"-"`
}

// Error implements the error interface
func (e *HarnessError) Error() string {
	var b strings.Builder
	if e.Service != "" {
		fmt.Fprintf(&b, "[%s] ", e.Service)
	}
	fmt.Fprintf(&b, "%s: %s", e.Type, e.Message)
	if e.Method != "" && e.URL != "" {
		fmt.Fprintf(&b, " (%s %s)", e.Method, e.URL)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status=%d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements the error unwrapping interface
func (e *HarnessError) Unwrap() error {
	return e.Err
}

// IsType reports whether err, or any error it wraps, is a HarnessError of type t.
func IsType(err error, t ErrorType) bool {
	var he *HarnessError
	if errors.As(err, &he) {
		return he.Type == t
	}
	return false
}

// NewConfigError creates a new configuration error
func NewConfigError(service, message string) *HarnessError {
	return &HarnessError{
		Type:    ErrorTypeConfig,
		Message: message,
		Service: service,
	}
}

// NewTransportError creates a new transport error for a request that never produced a response
func NewTransportError(method, url string, err error) *HarnessError {
	return &HarnessError{
		Type:    ErrorTypeTransport,
		Message: "request failed",
		Method:  method,
		URL:     url,
		Err:     err,
	}
}

// NewAssertionFailure creates a new assertion failure
func NewAssertionFailure(message string) *HarnessError {
	return &HarnessError{
		Type:    ErrorTypeAssertion,
		Message: message,
	}
}

// NewParseError creates a new parse error
func NewParseError(message string, err error) *HarnessError {
	return &HarnessError{
		Type:    ErrorTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewFixtureError creates a new fixture error carrying the unexpected status and a body excerpt
func NewFixtureError(service, method, url string, statusCode int, body []byte) *HarnessError {
	msg := "unexpected response"
	if len(body) > 0 {
		msg = "unexpected response: " + excerpt(body, 256)
	}
	return &HarnessError{
		Type:       ErrorTypeFixture,
		Message:    msg,
		Service:    service,
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
	}
}

func excerpt(body []byte, limit int) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
