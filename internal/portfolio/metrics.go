package portfolio

import "github.com/prometheus/client_golang/prometheus"

var (
	customersGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "riskwatch",
		Subsystem: "portfolio",
		Name:      "customers",
		Help:      "Customers per risk segment at the last overview.",
	}, []string{"segment"})

	averageRiskGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "riskwatch",
		Subsystem: "portfolio",
		Name:      "average_risk_score",
		Help:      "Average risk score at the last overview.",
	})

	predictedDelinquenciesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "riskwatch",
		Subsystem: "portfolio",
		Name:      "predicted_delinquencies_30d",
		Help:      "Customers matching the 30-day delinquency rule at the last overview.",
	})

	alertsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "riskwatch",
		Subsystem: "portfolio",
		Name:      "alerts",
		Help:      "Customers with a raised early-warning alert at the last overview.",
	})
)

func init() {
	prometheus.MustRegister(
		customersGauge,
		averageRiskGauge,
		predictedDelinquenciesGauge,
		alertsGauge,
	)
}

func observe(o Overview) {
	customersGauge.WithLabelValues("high").Set(float64(o.Segments.High))
	customersGauge.WithLabelValues("medium").Set(float64(o.Segments.Medium))
	customersGauge.WithLabelValues("low").Set(float64(o.Segments.Low))
	if o.AverageRiskScore != nil {
		averageRiskGauge.Set(float64(*o.AverageRiskScore))
	} else {
		averageRiskGauge.Set(0)
	}
	predictedDelinquenciesGauge.Set(float64(o.Predicted30DayDelinquencies))
	alertsGauge.Set(float64(o.AlertCount))
}
