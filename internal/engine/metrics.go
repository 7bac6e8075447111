package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts engine activity for the host's scrape endpoint. A nil
// *Metrics is valid and records nothing, so embedders without a registry pay
// no cost.
type Metrics struct {
	transitions *prometheus.CounterVec
	flagsOpened *prometheus.CounterVec
	scoredBand  *prometheus.CounterVec
	conflicts   prometheus.Counter
}

// NewMetrics registers the engine's collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corridor_compliance",
			Name:      "transitions_total",
			Help:      "State-changing workflow operations applied, by action.",
		}, []string{"action"}),
		flagsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corridor_compliance",
			Name:      "flags_opened_total",
			Help:      "Flags opened on transactions, by initial status.",
		}, []string{"status"}),
		scoredBand: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corridor_compliance",
			Name:      "scored_total",
			Help:      "Risk assessments produced, by resulting band.",
		}, []string{"level"}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "corridor_compliance",
			Name:      "write_conflicts_total",
			Help:      "Workflow writes lost to a concurrent version conflict.",
		}),
	}
}

func (m *Metrics) transition(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action).Inc()
}

func (m *Metrics) flagOpened(status string) {
	if m == nil {
		return
	}
	m.flagsOpened.WithLabelValues(status).Inc()
}

func (m *Metrics) scored(level string) {
	if m == nil {
		return
	}
	m.scoredBand.WithLabelValues(level).Inc()
}

func (m *Metrics) conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}
