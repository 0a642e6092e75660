package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for authorization decisions.
type Metrics struct {
	Decisions   *prometheus.CounterVec
	RoleLookups *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_policy_decisions_total",
			Help: "Authorization decisions by action, matching rule and outcome",
		}, []string{"action", "rule", "allowed"}),

		RoleLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdash_policy_role_lookups_total",
			Help: "Role lookups by source (registry, claim, error)",
		}, []string{"source"}),
	}
}

func (m *Metrics) IncDecision(action, rule string, allowed bool) {
	if m != nil {
		m.Decisions.WithLabelValues(action, rule, strconv.FormatBool(allowed)).Inc()
	}
}

func (m *Metrics) IncRoleLookup(source string) {
	if m != nil {
		m.RoleLookups.WithLabelValues(source).Inc()
	}
}
