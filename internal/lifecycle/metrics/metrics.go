package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	Transitions     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Commands: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_lifecycle_commands_total",
			Help: "Lifecycle commands by operation and result code",
		}, []string{"operation", "code"}),
		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "govdash_lifecycle_command_duration_seconds",
			Help:    "Time from authorization to commit of a lifecycle command",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_lifecycle_transitions_total",
			Help: "Committed state transitions by entity and target status",
		}, []string{"entity", "to"}),
	}
}

func (m *Metrics) ObserveCommand(operation, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(operation, code).Inc()
	m.CommandDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) IncTransition(entity, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(entity, to).Inc()
	}
}
