package harness

import (
	"bytes"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"

	"galleyprobe/internal/core"
)

// MetricFamilies parses a Prometheus text exposition body.
func MetricFamilies(resp *Response) (map[string]*dto.MetricFamily, error) {
	body, err := resp.Body()
	if err != nil {
		return nil, err
	}
	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	if err != nil {
		return nil, core.NewParseError("invalid metrics exposition", err)
	}
	return families, nil
}
