package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Deliveries *prometheus.CounterVec
	Retries    *prometheus.CounterVec
	BreakerOps *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_notification_deliveries_total",
			Help: "Per-channel delivery outcomes (sent, failed, skipped)",
		}, []string{"channel", "outcome"}),
		Retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_notification_retries_total",
			Help: "Delivery attempts beyond the first",
		}, []string{"channel"}),
		BreakerOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_notification_breaker_transitions_total",
			Help: "Provider circuit breaker state changes",
		}, []string{"channel", "state"}),
	}
}

func (m *Metrics) IncDelivery(channel, outcome string) {
	if m != nil {
		m.Deliveries.WithLabelValues(channel, outcome).Inc()
	}
}

func (m *Metrics) IncRetry(channel string) {
	if m != nil {
		m.Retries.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) IncBreaker(channel, state string) {
	if m != nil {
		m.BreakerOps.WithLabelValues(channel, state).Inc()
	}
}
