package predictions

import "github.com/prometheus/client_golang/prometheus"

var (
	fetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskwatch",
		Subsystem: "predictions",
		Name:      "fetches_total",
		Help:      "Prediction fetches by result (ok, error).",
	}, []string{"result"})

	fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "riskwatch",
		Subsystem: "predictions",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching from the prediction service.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(fetchesTotal, fetchDuration)
}
