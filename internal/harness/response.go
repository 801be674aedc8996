package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/tidwall/gjson"

	"galleyprobe/internal/core"
)

// ErrReleased is returned when the body of a released response was never read.
var ErrReleased = errors.New("response already released")

// drainLimit bounds how much unread body Close discards to keep the connection reusable.
const drainLimit = 64 << 10

// Response is a received HTTP response whose body is read lazily and at most once.
type Response struct {
	StatusCode int
	Header     http.Header
	Method     string
	URL        *url.URL

	raw      *http.Response
	maxBody  int64
	observer Observer

	mu       sync.Mutex
	body     []byte
	readErr  error
	read     bool
	released bool
}

func newResponse(raw *http.Response, method string, u *url.URL, maxBody int64, observer Observer) *Response {
	return &Response{
		StatusCode: raw.StatusCode,
		Header:     raw.Header,
		Method:     method,
		URL:        u,
		raw:        raw,
		maxBody:    maxBody,
		observer:   observer,
	}
}

// Body returns the decoded response body. The first call reads it; later
// calls return the same bytes.
func (r *Response) Body() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bodyLocked()
}

func (r *Response) bodyLocked() ([]byte, error) {
	if r.read {
		return r.body, r.readErr
	}
	if r.released {
		return nil, ErrReleased
	}
	r.read = true

	data, err := io.ReadAll(io.LimitReader(r.raw.Body, r.maxBody+1))
	if err != nil {
		r.readErr = core.NewTransportError(r.Method, r.URL.String(), err)
		return nil, r.readErr
	}
	if int64(len(data)) > r.maxBody {
		r.readErr = core.NewParseError(fmt.Sprintf("response body exceeds %d bytes", r.maxBody), nil)
		return nil, r.readErr
	}
	data, err = decodeBody(data, r.Header.Get("Content-Encoding"), r.maxBody)
	if err != nil {
		r.readErr = err
		return nil, err
	}
	r.body = data
	return r.body, nil
}

// Text returns the body as a string.
func (r *Response) Text() (string, error) {
	b, err := r.Body()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// JSON parses the body into generic JSON values. A body that is not valid
// JSON yields a parse_error.
func (r *Response) JSON() (any, error) {
	var v any
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decode parses the JSON body into v.
func (r *Response) Decode(v any) error {
	b, err := r.Body()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return core.NewParseError("response body is not valid JSON", err)
	}
	return nil
}

// Get queries the JSON body with a gjson path. Missing paths, unreadable
// and non-JSON bodies yield a result whose Exists is false.
func (r *Response) Get(path string) gjson.Result {
	b, err := r.Body()
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(b, path)
}

// Close releases the underlying connection. It is safe to call more than once;
// only the first call has an effect.
func (r *Response) Close() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil
	}
	r.released = true
	if !r.read {
		_, _ = io.Copy(io.Discard, io.LimitReader(r.raw.Body, drainLimit))
	}
	err := r.raw.Body.Close()
	exchange := Exchange{
		Method: r.Method,
		Path:   r.URL.Path,
		Status: r.StatusCode,
		Body:   r.body,
	}
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer(exchange)
	}
	return err
}

// Released reports whether Close has been called.
func (r *Response) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}
