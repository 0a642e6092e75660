package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RecomputeDuration prometheus.Histogram
	Results           *prometheus.CounterVec
	Failures          prometheus.Counter
	Coalesced         prometheus.Counter
	Alerts            prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		RecomputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "govdash_compliance_recompute_duration_seconds",
			Help:    "Time to gather inputs, score and persist one shop",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Results: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_compliance_results_total",
			Help: "Compliance computations by resulting status",
		}, []string{"status"}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govdash_compliance_recompute_failures_total",
			Help: "Recomputes that failed before persisting a result",
		}),
		Coalesced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govdash_compliance_recompute_coalesced_total",
			Help: "Async recompute triggers dropped because the shop queue was full",
		}),
		Alerts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govdash_compliance_alerts_total",
			Help: "compliance_alert notifications raised on status degradation",
		}),
	}
}

func (m *Metrics) ObserveRecompute(d time.Duration) {
	if m != nil {
		m.RecomputeDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncResult(status string) {
	if m != nil {
		m.Results.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncFailure() {
	if m != nil {
		m.Failures.Inc()
	}
}

func (m *Metrics) IncCoalesced() {
	if m != nil {
		m.Coalesced.Inc()
	}
}

func (m *Metrics) IncAlert() {
	if m != nil {
		m.Alerts.Inc()
	}
}
