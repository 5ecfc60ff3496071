package offers

import (
	"github.com/shopspring/decimal"
)

// Recommendation is the best offer for a customer and its expected value.
type Recommendation struct {
	Type          Type            `json:"offerType"`
	Title         string          `json:"title"`
	ExpectedValue decimal.Decimal `json:"expectedValue"`
}

// Recommend picks the offer with the highest expected value
// p*emi*reduction - cost, where p is the risk score read as a default
// probability. Only offers with economics compete; ties keep catalog order.
func Recommend(riskScore int, emi decimal.Decimal) Recommendation {
	p := decimal.NewFromInt(int64(riskScore)).Div(decimal.NewFromInt(100))

	var best Recommendation
	bestValue := decimal.NewFromInt(-1)
	for _, tpl := range catalog {
		if tpl.Economics == nil {
			continue
		}
		ev := p.Mul(emi).Mul(tpl.Economics.Reduction).Sub(tpl.Economics.Cost)
		if ev.GreaterThan(bestValue) {
			bestValue = ev
			best = Recommendation{Type: tpl.Type, Title: tpl.Title, ExpectedValue: ev}
		}
	}
	return best
}
