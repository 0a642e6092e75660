package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Runs        *prometheus.CounterVec
	Items       *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_sweep_runs_total",
			Help: "Sweep job runs by job and outcome",
		}, []string{"job", "outcome"}),
		Items: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_sweep_items_total",
			Help: "Entities a sweep job acted on, by job and outcome",
		}, []string{"job", "outcome"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "govdash_sweep_run_duration_seconds",
			Help:    "Duration of one sweep job run",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
}

func (m *Metrics) ObserveRun(job string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Runs.WithLabelValues(job, outcome).Inc()
	m.RunDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) IncItem(job, outcome string) {
	if m != nil {
		m.Items.WithLabelValues(job, outcome).Inc()
	}
}
