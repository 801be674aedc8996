package baseline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Shape renders the canonical shape of a JSON body: object keys sorted, values
// replaced by their kind, array elements collapsed to their distinct shapes.
// Non-JSON bodies have the shape "text"; empty bodies "empty".
func Shape(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "empty"
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return "text"
	}

	var b strings.Builder
	writeShape(&b, v)
	return b.String()
}

func writeShape(b *strings.Builder, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte(':')
			writeShape(b, t[k])
		}
		b.WriteByte('}')
	case []any:
		seen := make(map[string]struct{}, len(t))
		shapes := make([]string, 0, len(t))
		for _, el := range t {
			var eb strings.Builder
			writeShape(&eb, el)
			s := eb.String()
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			shapes = append(shapes, s)
		}
		sort.Strings(shapes)
		b.WriteByte('[')
		b.WriteString(strings.Join(shapes, "|"))
		b.WriteByte(']')
	case string:
		b.WriteString("string")
	case json.Number:
		b.WriteString("number")
	case bool:
		b.WriteString("bool")
	case nil:
		b.WriteString("null")
	default:
		fmt.Fprintf(b, "%T", t)
	}
}

// Fingerprint hashes the shape of body with xxhash64.
func Fingerprint(body []byte) string {
	return fingerprintShape(Shape(body))
}

func fingerprintShape(shape string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(shape))
}

// NormalizePath drops the query string and replaces UUID segments with {id}.
func NormalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if len(seg) == 36 {
			if _, err := uuid.Parse(seg); err == nil {
				segments[i] = "{id}"
			}
		}
	}
	return strings.Join(segments, "/")
}

// NewExchange reduces a request/response pair to its recorded form.
// HEAD responses always have the shape "empty".
func NewExchange(method, path string, status int, body []byte) Exchange {
	shape := "empty"
	if method != http.MethodHead {
		shape = Shape(body)
	}
	return Exchange{
		Method:      method,
		Path:        NormalizePath(path),
		Status:      status,
		Fingerprint: fingerprintShape(shape),
		Shape:       shape,
	}
}
