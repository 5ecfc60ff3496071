package roster

// Stress thresholds used by the alert rule.
const (
	stressSalaryDelayDays   = 5
	stressFailedAutoDebits  = 2
	stressDiscretionaryPct  = 45
	alertRiskScore          = 70
	advisoryDiscretionaryPc = 40
	advisorySavingsDecline  = 20
)

const (
	AdvisoryDiscretionary = "Your discretionary expenses exceed 40% of income. Reducing entertainment spend by ₹3,000 can improve EMI stability."
	AdvisorySavings       = "Your savings are declining rapidly. Maintaining a buffer of 3 EMI cycles is recommended."
	AdvisoryStable        = "Your financial health looks stable. Keep up the good habits!"
)

// StressSignals reports which behavioral stress indicators are tripped.
type StressSignals struct {
	SalaryDelayed     bool `json:"salaryDelayed"`
	FailedAutoDebits  bool `json:"failedAutoDebits"`
	HighDiscretionary bool `json:"highDiscretionary"`
	Count             int  `json:"count"`
}

// Signals is the early-warning read-out for one customer.
type Signals struct {
	CustomerID    string        `json:"customerId"`
	Segment       Segment       `json:"segment"`
	Alert         bool          `json:"alert"`
	AlertReasons  []string      `json:"alertReasons,omitempty"`
	StressSignals StressSignals `json:"stressSignals"`
	Advisory      []string      `json:"advisory"`
}

// Evaluate derives the alert flag, stress signals and advisory lines for c.
// An alert fires on a risk score above 70, Critical momentum, or all three
// stress signals at once.
func Evaluate(c *Customer) Signals {
	bm := c.BehavioralMetrics
	stress := StressSignals{
		SalaryDelayed:     c.SalaryDelay > stressSalaryDelayDays,
		FailedAutoDebits:  bm.FailedAutoDebits >= stressFailedAutoDebits,
		HighDiscretionary: bm.DiscretionaryRatio > stressDiscretionaryPct,
	}
	for _, on := range []bool{stress.SalaryDelayed, stress.FailedAutoDebits, stress.HighDiscretionary} {
		if on {
			stress.Count++
		}
	}

	sig := Signals{
		CustomerID:    c.ID,
		Segment:       c.Segment(),
		StressSignals: stress,
	}
	if c.RiskScore > alertRiskScore {
		sig.AlertReasons = append(sig.AlertReasons, "risk_score")
	}
	if c.RiskMomentum == MomentumCritical {
		sig.AlertReasons = append(sig.AlertReasons, "critical_momentum")
	}
	if stress.Count == 3 {
		sig.AlertReasons = append(sig.AlertReasons, "stress_signals")
	}
	sig.Alert = len(sig.AlertReasons) > 0

	if bm.DiscretionaryRatio > advisoryDiscretionaryPc {
		sig.Advisory = append(sig.Advisory, AdvisoryDiscretionary)
	}
	if bm.SavingsDecline > advisorySavingsDecline {
		sig.Advisory = append(sig.Advisory, AdvisorySavings)
	}
	if len(sig.Advisory) == 0 {
		sig.Advisory = []string{AdvisoryStable}
	}
	return sig
}
