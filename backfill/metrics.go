package backfill

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts backfill outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Candidates prometheus.Counter
	Updated    prometheus.Counter
	Skipped    *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_backfill_candidates_total",
			Help: "Explanations found with an empty beginner-friendly entry",
		}),
		Updated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_backfill_updated_total",
			Help: "Explanations whose beginner-friendly entry was written",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_backfill_skipped_total",
			Help: "Candidates skipped, by reason",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.Candidates, m.Updated, m.Skipped)
	}
	return m
}

func (m *Metrics) candidates(n int) {
	if m == nil {
		return
	}
	m.Candidates.Add(float64(n))
}

func (m *Metrics) record(o Outcome) {
	if m == nil {
		return
	}
	switch o {
	case Updated:
		m.Updated.Inc()
	case DryRun:
	default:
		m.Skipped.WithLabelValues(string(o)).Inc()
	}
}
