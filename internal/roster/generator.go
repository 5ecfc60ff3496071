package roster

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/mbd888/riskwatch/internal/money"
)

// DefaultRosterSize is the number of customers generated for demo mode.
const DefaultRosterSize = 25

var customerNames = []string{
	"Rajesh Kumar", "Priya Singh", "Amit Patel", "Sneha Gupta", "Vikram Mehta",
	"Ananya Sharma", "Rohan Desai", "Divya Iyer", "Sanjay Reddy", "Neha Malhotra",
	"Arjun Nair", "Pooja Verma", "Nikhil Rao", "Kavya Krishnan", "Suresh Joshi",
	"Anjali Bhatt", "Aditya Roy", "Deepika Nambiar", "Karan Singh", "Radhika Chopra",
	"Varun Kapoor", "Isha Saxena", "Harsh Pandey", "Megha Bhat", "Sameer Khan",
	"Ritika Chakraborty", "Rohit Sharma", "Shruti Iyer", "Praveen Kumar", "Anushka Tiwari",
}

// Generator produces a synthetic roster. The same seed yields the same roster.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator seeded with seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate returns n customers with ids CUST0001..CUSTnnnn, in id order.
func (g *Generator) Generate(n int) []*Customer {
	out := make([]*Customer, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.customer(i))
	}
	return out
}

func (g *Generator) customer(i int) *Customer {
	r := g.rng
	income := math.Round(25000 + r.Float64()*95000)
	emi := math.Round(5000 + r.Float64()*30000)
	savings := math.Round(r.Float64() * 200000)
	risk := int(15 + r.Float64()*75)
	health := int(math.Round(float64(100-risk) + (r.Float64()*20 - 10)))

	return &Customer{
		ID:             fmt.Sprintf("CUST%04d", i+1),
		Name:           customerNames[i%len(customerNames)],
		MonthlyIncome:  money.FromInt(int64(income)),
		EMIAmount:      money.FromInt(int64(emi)),
		SavingsBalance: money.FromInt(int64(savings)),
		LoanType:       LoanTypes[r.IntN(len(LoanTypes))],
		RiskScore:      risk,
		HealthScore:    clamp(health, MinHealthScore, MaxHealthScore),
		MissedEMI6M:    r.IntN(3),
		SalaryDelay:    r.IntN(9),
		RiskMomentum:   Momentums[r.IntN(len(Momentums))],
		BehavioralMetrics: BehavioralMetrics{
			SavingsDecline:     r.IntN(60),
			DiscretionaryRatio: 20 + r.IntN(60),
			ATMSpike:           r.Float64() > 0.7,
			FailedAutoDebits:   r.IntN(5),
			UtilityDelay:       r.IntN(90),
		},
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
