package portfolio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mbd888/riskwatch/internal/roster"
)

var (
	ErrUnknownScenario  = errors.New("unknown shock scenario")
	ErrInvalidIntensity = errors.New("intensity must be in (0, 5]")
)

// MaxIntensity bounds the shock multiplier.
const MaxIntensity = 5.0

// Scenario names a what-if economic shock.
type Scenario string

const (
	ScenarioInflation         Scenario = "inflation"
	ScenarioRecession         Scenario = "recession"
	ScenarioInterestRateSpike Scenario = "interest_rate_spike"
	ScenarioLiquidityCrisis   Scenario = "liquidity_crisis"
)

// Scenarios lists every supported shock.
var Scenarios = []Scenario{ScenarioInflation, ScenarioRecession, ScenarioInterestRateSpike, ScenarioLiquidityCrisis}

// ParseScenario accepts a scenario name in any case; "standard" is inflation.
func ParseScenario(s string) (Scenario, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "standard" {
		return ScenarioInflation, nil
	}
	for _, sc := range Scenarios {
		if string(sc) == name {
			return sc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScenario, s)
}

// SimulationResult compares the roster before and after a shock. Risk scores
// are not recomputed; the shock moves the behavioral inputs that drive the
// alert and delinquency rules.
type SimulationResult struct {
	Scenario  Scenario           `json:"scenario"`
	Intensity float64            `json:"intensity"`
	Before    Overview           `json:"before"`
	After     Overview           `json:"after"`
	Customers []*roster.Customer `json:"customers"`
}

// Simulate applies the shock to a copy of customers. The input is not modified.
func Simulate(customers []*roster.Customer, scenario Scenario, intensity float64) (*SimulationResult, error) {
	if intensity <= 0 || intensity > MaxIntensity {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidIntensity, intensity)
	}
	shock, ok := shocks[scenario]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, scenario)
	}

	shocked := make([]*roster.Customer, len(customers))
	for i, c := range customers {
		cp := *c
		shock(&cp, intensity)
		if cp.SavingsBalance.IsNegative() {
			cp.SavingsBalance = decimal.Zero
		}
		shocked[i] = &cp
	}

	return &SimulationResult{
		Scenario:  scenario,
		Intensity: intensity,
		Before:    Compute(customers),
		After:     Compute(shocked),
		Customers: shocked,
	}, nil
}

var shocks = map[Scenario]func(c *roster.Customer, intensity float64){
	ScenarioInflation: func(c *roster.Customer, i float64) {
		bm := &c.BehavioralMetrics
		bm.DiscretionaryRatio = min(scale(bm.DiscretionaryRatio, 1+0.15*i), 95)
		bm.SavingsDecline += scale(10, i)
		hit := c.MonthlyIncome.Mul(decimal.NewFromFloat(0.05 * i)).Truncate(0)
		c.SavingsBalance = c.SavingsBalance.Sub(hit)
	},
	ScenarioRecession: func(c *roster.Customer, i float64) {
		bm := &c.BehavioralMetrics
		c.SalaryDelay += scale(3, i)
		bm.UtilityDelay += scale(4, i)
		if i >= 1 {
			bm.FailedAutoDebits++
		}
		c.MonthlyIncome = c.MonthlyIncome.Mul(decimal.NewFromFloat(max(1-0.05*i, 0))).Round(2)
	},
	ScenarioInterestRateSpike: func(c *roster.Customer, i float64) {
		c.EMIAmount = c.EMIAmount.Mul(decimal.NewFromFloat(1.10 * i)).Truncate(0)
	},
	ScenarioLiquidityCrisis: func(c *roster.Customer, i float64) {
		emergency := c.MonthlyIncome.Mul(decimal.NewFromFloat(0.5 * i)).Truncate(0)
		c.SavingsBalance = c.SavingsBalance.Sub(emergency)
		c.BehavioralMetrics.SavingsDecline = 100
	},
}

// scale returns v*f truncated toward zero, computed in decimal so that
// 40*1.15 is 46 rather than 45.999.
func scale(v int, f float64) int {
	return int(decimal.NewFromInt(int64(v)).Mul(decimal.NewFromFloat(f)).IntPart())
}
