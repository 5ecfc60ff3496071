// Package portfolio derives portfolio-level risk figures from a roster
// snapshot. Everything here is computed on demand from the customers passed
// in; nothing is cached.
package portfolio

import (
	"errors"

	"github.com/mbd888/riskwatch/internal/roster"
)

var ErrEmptyPortfolio = errors.New("portfolio is empty")

// Delinquency rule thresholds.
const (
	DelinquencyRiskScore   = 70
	DelinquencySalaryDelay = 5
)

// SegmentCounts partitions a roster by risk band.
type SegmentCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Total is the number of customers counted.
func (s SegmentCounts) Total() int {
	return s.High + s.Medium + s.Low
}

// AverageRiskScore is the mean risk score rounded half up.
func AverageRiskScore(customers []*roster.Customer) (int, error) {
	if len(customers) == 0 {
		return 0, ErrEmptyPortfolio
	}
	sum := 0
	for _, c := range customers {
		sum += c.RiskScore
	}
	n := len(customers)
	return (2*sum + n) / (2 * n), nil
}

// CountSegments counts customers per risk band.
func CountSegments(customers []*roster.Customer) SegmentCounts {
	var s SegmentCounts
	for _, c := range customers {
		switch c.Segment() {
		case roster.SegmentHigh:
			s.High++
		case roster.SegmentMedium:
			s.Medium++
		default:
			s.Low++
		}
	}
	return s
}

// Predicted30DayDelinquencies counts customers with riskScore >= 70 and a
// salary delay of at least 5 days. It is a fixed rule over current
// attributes, not a model inference.
func Predicted30DayDelinquencies(customers []*roster.Customer) int {
	n := 0
	for _, c := range customers {
		if c.RiskScore >= DelinquencyRiskScore && c.SalaryDelay >= DelinquencySalaryDelay {
			n++
		}
	}
	return n
}

// AlertCount counts customers whose early-warning alert is raised.
func AlertCount(customers []*roster.Customer) int {
	n := 0
	for _, c := range customers {
		if roster.Evaluate(c).Alert {
			n++
		}
	}
	return n
}
