package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Published   *prometheus.CounterVec
	Dropped     prometheus.Counter
	Subscribers prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_feed_events_published_total",
			Help: "Change feed events published by topic",
		}, []string{"topic"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govdash_feed_events_dropped_total",
			Help: "Events not delivered to a subscriber whose buffer was full",
		}),
		Subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "govdash_feed_subscribers",
			Help: "Open change feed subscriptions",
		}),
	}
}

func (m *Metrics) IncPublished(topic string) {
	if m != nil {
		m.Published.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) AddSubscribers(delta float64) {
	if m != nil {
		m.Subscribers.Add(delta)
	}
}
