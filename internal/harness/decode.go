package harness

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"

	"galleyprobe/internal/core"
)

// decodeBody undoes the Content-Encoding of body, reading at most limit decoded bytes.
func decodeBody(body []byte, contentEncoding string, limit int64) ([]byte, error) {
	if len(body) == 0 || contentEncoding == "" {
		return body, nil
	}

	// Only a single encoding is negotiated
	encoding := strings.ToLower(strings.TrimSpace(strings.Split(contentEncoding, ",")[0]))

	var reader io.Reader
	switch encoding {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, core.NewParseError("invalid gzip body", err)
		}
		defer zr.Close()
		reader = zr
	case "deflate":
		// zlib-wrapped per RFC 9110; some servers send raw deflate
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			reader = zr
		} else {
			fr := flate.NewReader(bytes.NewReader(body))
			defer fr.Close()
			reader = fr
		}
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	default:
		return nil, core.NewParseError(fmt.Sprintf("unsupported content encoding %q", encoding), nil)
	}

	decoded, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, core.NewParseError("failed to decode "+encoding+" body", err)
	}
	if int64(len(decoded)) > limit {
		return nil, core.NewParseError(fmt.Sprintf("decoded body exceeds %d bytes", limit), nil)
	}
	return decoded, nil
}
