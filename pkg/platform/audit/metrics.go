package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit recording.
type Metrics struct {
	Recorded *prometheus.CounterVec
	Failed   prometheus.Counter
	Dropped  prometheus.Counter
}

// NewMetrics creates and registers audit metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_audit_recorded_total",
			Help: "Total number of audit events accepted, by category",
		}, []string{"category"}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govdash_audit_failed_total",
			Help: "Total number of audit events that could not be persisted",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govdash_audit_dropped_total",
			Help: "Total number of audit events dropped because the async buffer was full",
		}),
	}
}

func (m *Metrics) IncRecorded(category EventCategory) {
	if m == nil {
		return
	}
	m.Recorded.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) IncFailed() {
	if m == nil {
		return
	}
	m.Failed.Inc()
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}
