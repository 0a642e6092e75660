package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks        *prometheus.CounterVec
	PrunedBuckets prometheus.Counter
	StoreErrors   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_ratelimit_checks_total",
			Help: "Rate limit checks by action and outcome",
		}, []string{"action", "outcome"}),
		PrunedBuckets: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govdash_ratelimit_pruned_buckets_total",
			Help: "Idle sliding-window buckets removed by the prune schedule",
		}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govdash_ratelimit_store_errors_total",
			Help: "Bucket store failures; the limiter fails open on these",
		}),
	}
}

func (m *Metrics) IncCheck(action, outcome string) {
	if m != nil {
		m.Checks.WithLabelValues(action, outcome).Inc()
	}
}

func (m *Metrics) AddPruned(n int) {
	if m != nil {
		m.PrunedBuckets.Add(float64(n))
	}
}

func (m *Metrics) IncStoreError() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}
