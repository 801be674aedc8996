package suite

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics counts check outcomes for export in the Prometheus text format.
type RunMetrics struct {
	checks   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	drift    *prometheus.CounterVec
}

// NewRunMetrics creates the check metrics and registers them with reg.
func NewRunMetrics(reg prometheus.Registerer) *RunMetrics {
	m := &RunMetrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "galleyprobe_checks_total",
			Help: "Number of contract checks run, by check and outcome",
		}, []string{"check", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "galleyprobe_check_duration_seconds",
			Help:    "Wall time of contract checks",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"check"}),
		drift: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "galleyprobe_contract_drift_total",
			Help: "Number of differences from recorded baselines, by check and kind",
		}, []string{"check", "kind"}),
	}
	reg.MustRegister(m.checks, m.duration, m.drift)
	return m
}

func (m *RunMetrics) observe(res Result) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(res.Check, res.Status).Inc()
	m.duration.WithLabelValues(res.Check).Observe(float64(res.DurationMs) / 1000)
	for _, d := range res.Drift {
		m.drift.WithLabelValues(res.Check, string(d.Kind)).Inc()
	}
}
