package harness

import (
	"fmt"
	"strings"

	"galleyprobe/internal/core"
)

// Resolve builds the URL of path on service. Internal endpoints use the
// service's internal base URL when one is configured and are never versioned.
func (h Harness) Resolve(service, path string, internal bool) (string, error) {
	if h.cfg == nil {
		return "", core.NewConfigError(service, "harness is not initialized")
	}
	svc, ok := h.cfg.Services[service]
	if !ok {
		return "", core.NewConfigError(service, "unknown service")
	}

	base := svc.URL
	if internal && svc.InternalURL != "" {
		base = svc.InternalURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var prefix string
	if !internal && h.version > 0 && h.cfg.Harness.VersionHeader == "" {
		prefix = fmt.Sprintf(h.cfg.Harness.VersionPrefix, h.version)
	}
	return strings.TrimRight(base, "/") + prefix + path, nil
}

func wrapConfigError(err error) error {
	return &core.HarnessError{
		Type:    core.ErrorTypeConfig,
		Message: "invalid configuration",
		Err:     err,
	}
}
