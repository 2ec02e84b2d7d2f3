// Package metrics provides observability for the policy engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks policy evaluation outcomes and latency.
type Metrics struct {
	Outcomes        *prometheus.CounterVec
	EvaluateLatency prometheus.Histogram
}

// New registers and returns the policy engine metrics.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_policy_outcomes_total",
			Help: "Total restriction evaluations by resulting code",
		}, []string{"code"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "covenant_policy_evaluate_duration_seconds",
			Help:    "Duration of restriction evaluations",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}),
	}
}

// ObserveEvaluation records one evaluation outcome. Safe on a nil receiver
// so the engine works without metrics wired.
func (m *Metrics) ObserveEvaluation(code uint8, d time.Duration) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(strconv.Itoa(int(code))).Inc()
	m.EvaluateLatency.Observe(d.Seconds())
}
