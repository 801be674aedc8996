package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"galleyprobe/internal/core"
)

const acceptEncoding = "gzip, deflate, br"

type requestConfig struct {
	body        io.Reader
	contentType string
	header      http.Header
	query       url.Values
	err         error
}

// RequestOption customizes a single request.
type RequestOption func(*requestConfig)

// WithJSON sends v encoded as JSON.
func WithJSON(v any) RequestOption {
	return func(rc *requestConfig) {
		data, err := json.Marshal(v)
		if err != nil {
			rc.err = core.NewParseError("failed to encode request body", err)
			return
		}
		rc.body = bytes.NewReader(data)
		rc.contentType = "application/json"
	}
}

// WithBody sends r as the request body.
func WithBody(r io.Reader, contentType string) RequestOption {
	return func(rc *requestConfig) {
		rc.body = r
		rc.contentType = contentType
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		rc.header.Set(key, value)
	}
}

// WithUser authenticates the request as u the way the gateway in front of
// galley does: Z-User carries the user id, Z-Connection a connection id.
func WithUser(u User) RequestOption {
	return func(rc *requestConfig) {
		rc.header.Set("Z-User", u.ID)
		rc.header.Set("Z-Connection", uuid.NewString())
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(rc *requestConfig) {
		rc.query.Add(key, value)
	}
}

// Request performs an HTTP request and returns the response unread.
// Non-2xx statuses are ordinary responses; only failures to get a response
// at all are returned as errors. The caller must Close the response;
// prefer Do, which does it on every exit path.
func (h Harness) Request(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Response, error) {
	rc := requestConfig{header: http.Header{}, query: url.Values{}}
	for _, opt := range opts {
		opt(&rc)
	}
	if rc.err != nil {
		return nil, rc.err
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &core.HarnessError{
			Type:    core.ErrorTypeConfig,
			Message: "invalid request URL",
			Method:  method,
			URL:     rawURL,
			Err:     err,
		}
	}
	if len(rc.query) > 0 {
		q := u.Query()
		for k, vs := range rc.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rc.body)
	if err != nil {
		return nil, core.NewTransportError(method, rawURL, err)
	}
	for k, vs := range rc.header {
		req.Header[k] = vs
	}
	if rc.contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", rc.contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	if name := h.cfg.Harness.VersionHeader; name != "" && h.version > 0 && !isInternalPath(u.Path) {
		req.Header.Set(name, strconv.Itoa(h.version))
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug("request failed", "method", method, "url", u.String(), "error", err)
		return nil, core.NewTransportError(method, u.String(), err)
	}
	h.logger.Debug("request",
		"method", method,
		"url", u.String(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return newResponse(resp, method, u, h.cfg.Harness.MaxBodyBytes, h.observer), nil
}

// Do performs a request and passes the response to fn. The response is
// released exactly once when Do returns, including when fn panics or calls
// runtime.Goexit (as t.FailNow does).
func (h Harness) Do(ctx context.Context, method, rawURL string, fn func(*Response) error, opts ...RequestOption) error {
	resp, err := h.Request(ctx, method, rawURL, opts...)
	if err != nil {
		return err
	}
	defer resp.Close()
	return fn(resp)
}

// isInternalPath reports whether path addresses the internal API, which has no versions.
func isInternalPath(path string) bool {
	return path == "/i" || strings.HasPrefix(path, "/i/")
}
