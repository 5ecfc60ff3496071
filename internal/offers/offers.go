// Package offers is the fixed catalog of retention offers and the message
// templates used to present them to a customer.
package offers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mbd888/riskwatch/internal/money"
	"github.com/mbd888/riskwatch/internal/roster"
)

var ErrUnknownOfferType = errors.New("unknown offer type")

// DefaultDueDateLabel fills {dueDate} when no label is configured.
const DefaultDueDateLabel = "next week"

// Type is the catalog key of an offer.
type Type string

const (
	SoftReminder    Type = "Soft Reminder"
	GracePeriod     Type = "Grace Period"
	EMIRestructure  Type = "EMI Restructure"
	PaymentHoliday  Type = "Payment Holiday"
	BalanceTransfer Type = "Balance Transfer"
	PersonalVisit   Type = "Personal Visit"
)

// Economics is the cost of extending an offer and the fraction of expected
// loss it is believed to recover.
type Economics struct {
	Cost      decimal.Decimal `json:"cost"`
	Reduction decimal.Decimal `json:"reduction"`
}

// Template is one catalog entry.
type Template struct {
	Type      Type       `json:"offerType"`
	Title     string     `json:"title"`
	Template  string     `json:"template"`
	Economics *Economics `json:"economics,omitempty"`
}

func economics(cost int64, reduction string) *Economics {
	return &Economics{
		Cost:      decimal.NewFromInt(cost),
		Reduction: decimal.RequireFromString(reduction),
	}
}

var catalog = []Template{
	{
		Type:      SoftReminder,
		Title:     "Payment Reminder",
		Template:  "Hi {name}, your EMI payment of ₹{emiAmount} is due on {dueDate}. Please ensure timely payment to avoid penalties.",
		Economics: economics(0, "0.05"),
	},
	{
		Type:      GracePeriod,
		Title:     "Grace Period Offer",
		Template:  "Hi {name}, we understand financial challenges. We're offering a 1-month payment holiday on your EMI. Reply YES to accept this offer.",
		Economics: economics(500, "0.15"),
	},
	{
		Type:      EMIRestructure,
		Title:     "EMI Restructure Offer",
		Template:  "Hi {name}, we can restructure your loan to reduce your monthly EMI by 15%. This will extend your loan tenure by 6 months. Interested? Reply YES.",
		Economics: economics(2000, "0.30"),
	},
	{
		Type:      PaymentHoliday,
		Title:     "Payment Holiday Offer",
		Template:  "Hi {name}, take a breather with our 2-month payment holiday. No interest charges apply. Accept this offer to proceed.",
		Economics: economics(4000, "0.45"),
	},
	{
		Type:     BalanceTransfer,
		Title:    "Balance Transfer Offer",
		Template: "Hi {name}, consolidate your loans with us and get a lower interest rate. Call us at 1800-123-4567 to discuss.",
	},
	{
		Type:     PersonalVisit,
		Title:    "Personal Assistance",
		Template: "Hi {name}, our relationship manager will visit you this week to discuss personalized solutions for your financial needs.",
	},
}

// List returns the catalog in display order.
func List() []Template {
	out := make([]Template, len(catalog))
	copy(out, catalog)
	return out
}

// Get looks up one template.
func Get(t Type) (Template, error) {
	for _, tpl := range catalog {
		if tpl.Type == t {
			return tpl, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %q", ErrUnknownOfferType, t)
}

// Parse resolves a catalog key leniently: case-insensitive, with hyphens or
// underscores accepted in place of spaces ("payment-holiday").
func Parse(s string) (Type, error) {
	norm := strings.ToLower(strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(s)))
	for _, tpl := range catalog {
		if strings.ToLower(string(tpl.Type)) == norm {
			return tpl.Type, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOfferType, s)
}

// Render substitutes {name}, {emiAmount} and {dueDate} into the offer's
// template. Substitution is literal, dueDate included; other brace tokens
// are left as-is.
func Render(t Type, c *roster.Customer, dueDate string) (string, error) {
	tpl, err := Get(t)
	if err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		"{name}", c.Name,
		"{emiAmount}", money.Format(c.EMIAmount),
		"{dueDate}", dueDate,
	)
	return r.Replace(tpl.Template), nil
}
