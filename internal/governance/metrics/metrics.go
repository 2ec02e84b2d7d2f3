// Package metrics provides observability for the governance state machine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks proposal lifecycle activity.
type Metrics struct {
	Proposals  prometheus.Counter
	Votes      *prometheus.CounterVec
	Executions *prometheus.CounterVec
}

// New registers and returns the governance metrics.
func New() *Metrics {
	return &Metrics{
		Proposals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covenant_governance_proposals_total",
			Help: "Total proposals created",
		}),

		Votes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_governance_votes_total",
			Help: "Total votes cast by choice",
		}, []string{"support"}),

		Executions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_governance_executions_total",
			Help: "Total execution attempts by result",
		}, []string{"result"}),
	}
}

// ObserveProposal records one proposal creation. Safe on a nil receiver so
// the service works without metrics wired.
func (m *Metrics) ObserveProposal() {
	if m == nil {
		return
	}
	m.Proposals.Inc()
}

// ObserveVote records one cast vote.
func (m *Metrics) ObserveVote(support bool) {
	if m == nil {
		return
	}
	label := "against"
	if support {
		label = "for"
	}
	m.Votes.WithLabelValues(label).Inc()
}

// ObserveExecution records one execution attempt.
func (m *Metrics) ObserveExecution(result string) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(result).Inc()
}
