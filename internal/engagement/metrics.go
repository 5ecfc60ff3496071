package engagement

import "github.com/prometheus/client_golang/prometheus"

var (
	compositionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "riskwatch",
		Subsystem: "engagement",
		Name:      "compositions_open",
		Help:      "Compositions currently held in the registry.",
	})

	compositionsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskwatch",
		Subsystem: "engagement",
		Name:      "compositions_sent_total",
		Help:      "Compositions sent, by channel.",
	}, []string{"channel"})

	compositionsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "riskwatch",
		Subsystem: "engagement",
		Name:      "compositions_evicted_total",
		Help:      "Compositions dropped from the registry after going idle or being sent.",
	})

	sendRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskwatch",
		Subsystem: "engagement",
		Name:      "send_rejections_total",
		Help:      "Send attempts refused before reaching the tracker, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(compositionsOpen, compositionsSent, compositionsEvicted, sendRejections)
}
