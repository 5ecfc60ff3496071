package interventions

import "github.com/prometheus/client_golang/prometheus"

var (
	interventionsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskwatch",
		Subsystem: "interventions",
		Name:      "created_total",
		Help:      "Total interventions created by channel.",
	}, []string{"channel"})

	interventionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskwatch",
		Subsystem: "interventions",
		Name:      "transitions_total",
		Help:      "Total lifecycle transitions by target status.",
	}, []string{"status"})

	versionConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "riskwatch",
		Subsystem: "interventions",
		Name:      "version_conflicts_total",
		Help:      "Transitions rejected because the caller held a stale version.",
	})
)

func init() {
	prometheus.MustRegister(
		interventionsCreated,
		interventionTransitions,
		versionConflicts,
	)
}
