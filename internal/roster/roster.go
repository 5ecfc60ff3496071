// Package roster holds the borrower roster: each customer's identity, current
// risk attributes and behavioral metrics.
//
// The roster is presented in a fixed order: descending risk score, ties broken
// by the order customers were loaded. Risk attributes change only through
// ApplyRiskUpdate, which models an external re-scoring event.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mbd888/riskwatch/internal/money"
)

var (
	ErrNotFound        = errors.New("customer not found")
	ErrDuplicate       = errors.New("customer already exists")
	ErrInvalidSegment  = errors.New("invalid risk segment")
	ErrInvalidCustomer = errors.New("invalid customer")
	ErrEmptyRoster     = errors.New("roster is empty")
)

// Score bounds.
const (
	MinRiskScore   = 0
	MaxRiskScore   = 100
	MinHealthScore = 20
	MaxHealthScore = 100
)

// Segment thresholds on riskScore.
const (
	HighRiskThreshold   = 70
	MediumRiskThreshold = 40
)

// LoanType is the product a customer is repaying.
type LoanType string

const (
	LoanAuto      LoanType = "Auto Loan"
	LoanPersonal  LoanType = "Personal Loan"
	LoanHome      LoanType = "Home Loan"
	LoanEducation LoanType = "Education Loan"
	LoanBusiness  LoanType = "Business Loan"
)

// LoanTypes lists every supported loan type.
var LoanTypes = []LoanType{LoanAuto, LoanPersonal, LoanHome, LoanEducation, LoanBusiness}

func (l LoanType) Valid() bool {
	for _, t := range LoanTypes {
		if t == l {
			return true
		}
	}
	return false
}

// Momentum is the qualitative direction of a customer's risk.
type Momentum string

const (
	MomentumImproving Momentum = "Improving"
	MomentumStable    Momentum = "Stable"
	MomentumDeclining Momentum = "Declining"
	MomentumCritical  Momentum = "Critical"
)

// Momentums lists every momentum label.
var Momentums = []Momentum{MomentumImproving, MomentumStable, MomentumDeclining, MomentumCritical}

func (m Momentum) Valid() bool {
	for _, v := range Momentums {
		if v == m {
			return true
		}
	}
	return false
}

// Segment is a risk band derived from riskScore.
type Segment string

const (
	SegmentHigh   Segment = "High"
	SegmentMedium Segment = "Medium"
	SegmentLow    Segment = "Low"
)

// SegmentOf classifies a risk score: High >= 70, Medium 40-69, Low < 40.
func SegmentOf(riskScore int) Segment {
	switch {
	case riskScore >= HighRiskThreshold:
		return SegmentHigh
	case riskScore >= MediumRiskThreshold:
		return SegmentMedium
	default:
		return SegmentLow
	}
}

// ParseSegment accepts a segment name in any case.
func ParseSegment(s string) (Segment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SegmentHigh, nil
	case "medium":
		return SegmentMedium, nil
	case "low":
		return SegmentLow, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSegment, s)
}

// BehavioralMetrics are the transaction-level stress indicators.
type BehavioralMetrics struct {
	SavingsDecline     int  `json:"savingsDecline"`     // percent
	DiscretionaryRatio int  `json:"discretionaryRatio"` // percent of income
	ATMSpike           bool `json:"atmSpike"`
	FailedAutoDebits   int  `json:"failedAutoDebits"`
	UtilityDelay       int  `json:"utilityDelay"` // days
}

// Customer is one borrower on the roster.
type Customer struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	MonthlyIncome     decimal.Decimal   `json:"monthlyIncome"`
	EMIAmount         decimal.Decimal   `json:"emiAmount"`
	SavingsBalance    decimal.Decimal   `json:"savingsBalance"`
	LoanType          LoanType          `json:"loanType"`
	RiskScore         int               `json:"riskScore"`
	HealthScore       int               `json:"healthScore"`
	MissedEMI6M       int               `json:"missedEMI6M"`
	SalaryDelay       int               `json:"salaryDelay"` // days
	RiskMomentum      Momentum          `json:"riskMomentum"`
	BehavioralMetrics BehavioralMetrics `json:"behavioralMetrics"`
}

// Segment returns the customer's risk band.
func (c *Customer) Segment() Segment {
	return SegmentOf(c.RiskScore)
}

// Validate checks every bounded attribute.
func (c *Customer) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidCustomer, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.ID) == "" {
		return fail("id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fail("name is required")
	}
	for field, amount := range map[string]decimal.Decimal{
		"monthlyIncome":  c.MonthlyIncome,
		"emiAmount":      c.EMIAmount,
		"savingsBalance": c.SavingsBalance,
	} {
		if err := money.NonNegative(amount); err != nil {
			return fail("%s: %v", field, err)
		}
	}
	if !c.LoanType.Valid() {
		return fail("unknown loan type %q", c.LoanType)
	}
	if c.RiskScore < MinRiskScore || c.RiskScore > MaxRiskScore {
		return fail("riskScore %d outside [%d, %d]", c.RiskScore, MinRiskScore, MaxRiskScore)
	}
	if c.HealthScore < MinHealthScore || c.HealthScore > MaxHealthScore {
		return fail("healthScore %d outside [%d, %d]", c.HealthScore, MinHealthScore, MaxHealthScore)
	}
	if c.MissedEMI6M < 0 || c.SalaryDelay < 0 {
		return fail("missedEMI6M and salaryDelay must not be negative")
	}
	if !c.RiskMomentum.Valid() {
		return fail("unknown risk momentum %q", c.RiskMomentum)
	}
	bm := c.BehavioralMetrics
	if bm.SavingsDecline < 0 || bm.DiscretionaryRatio < 0 || bm.FailedAutoDebits < 0 || bm.UtilityDelay < 0 {
		return fail("behavioral metrics must not be negative")
	}
	return nil
}

// RiskUpdate carries the attributes a re-scoring event may change. Nil fields
// are left untouched.
type RiskUpdate struct {
	RiskScore         *int               `json:"riskScore,omitempty"`
	HealthScore       *int               `json:"healthScore,omitempty"`
	RiskMomentum      *Momentum          `json:"riskMomentum,omitempty"`
	SalaryDelay       *int               `json:"salaryDelay,omitempty"`
	MissedEMI6M       *int               `json:"missedEMI6M,omitempty"`
	BehavioralMetrics *BehavioralMetrics `json:"behavioralMetrics,omitempty"`
}

func (u RiskUpdate) applyTo(c *Customer) {
	if u.RiskScore != nil {
		c.RiskScore = *u.RiskScore
	}
	if u.HealthScore != nil {
		c.HealthScore = *u.HealthScore
	}
	if u.RiskMomentum != nil {
		c.RiskMomentum = *u.RiskMomentum
	}
	if u.SalaryDelay != nil {
		c.SalaryDelay = *u.SalaryDelay
	}
	if u.MissedEMI6M != nil {
		c.MissedEMI6M = *u.MissedEMI6M
	}
	if u.BehavioralMetrics != nil {
		c.BehavioralMetrics = *u.BehavioralMetrics
	}
}

// Filter narrows a roster listing. Zero values match everything.
type Filter struct {
	Segment Segment
	Query   string // case-insensitive substring of the name
	Limit   int
}

func (f Filter) matches(c *Customer) bool {
	if f.Segment != "" && c.Segment() != f.Segment {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

// Store persists the roster. List returns customers in roster order.
type Store interface {
	Insert(ctx context.Context, c *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
	List(ctx context.Context) ([]*Customer, error)
	Update(ctx context.Context, c *Customer) error
}
