package offers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/riskwatch/internal/money"
	"github.com/mbd888/riskwatch/internal/roster"
)

func testCustomer(name string, emi int64) *roster.Customer {
	return &roster.Customer{
		ID:        "CUST0001",
		Name:      name,
		EMIAmount: money.FromInt(emi),
	}
}

func TestList_CatalogOrder(t *testing.T) {
	all := List()
	require.Len(t, all, 6)

	var types []Type
	for _, tpl := range all {
		types = append(types, tpl.Type)
	}
	assert.Equal(t, []Type{SoftReminder, GracePeriod, EMIRestructure, PaymentHoliday, BalanceTransfer, PersonalVisit}, types)

	all[0].Title = "mutated"
	assert.Equal(t, "Payment Reminder", List()[0].Title)
}

func TestGet(t *testing.T) {
	tpl, err := Get(GracePeriod)
	require.NoError(t, err)
	assert.Equal(t, "Grace Period Offer", tpl.Title)

	_, err = Get("Loyalty Bonus")
	assert.ErrorIs(t, err, ErrUnknownOfferType)
}

func TestParse(t *testing.T) {
	for _, in := range []string{"Payment Holiday", "payment holiday", "payment-holiday", "PAYMENT_HOLIDAY"} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, PaymentHoliday, got)
	}
	_, err := Parse("holiday")
	assert.ErrorIs(t, err, ErrUnknownOfferType)
}

func TestRender_SoftReminder(t *testing.T) {
	msg, err := Render(SoftReminder, testCustomer("Priya Singh", 12000), "next week")
	require.NoError(t, err)
	assert.Equal(t,
		"Hi Priya Singh, your EMI payment of ₹12,000 is due on next week. Please ensure timely payment to avoid penalties.",
		msg)
}

func TestRender_DueDateIsTakenLiterally(t *testing.T) {
	msg, err := Render(SoftReminder, testCustomer("Amit Patel", 5000), "")
	require.NoError(t, err)
	assert.Contains(t, msg, "is due on . Please")
	assert.NotContains(t, msg, DefaultDueDateLabel)
}

func TestRender_EveryOfferNamesTheCustomer(t *testing.T) {
	for _, tpl := range List() {
		msg, err := Render(tpl.Type, testCustomer("Neha Malhotra", 9000), "")
		require.NoError(t, err)
		assert.Contains(t, msg, "Hi Neha Malhotra,")
		assert.NotContains(t, msg, "{name}")
	}
}

func TestRender_LeavesUnknownPlaceholders(t *testing.T) {
	msg, err := Render(GracePeriod, testCustomer("{nickname}", 9000), "")
	require.NoError(t, err)
	assert.Contains(t, msg, "Hi {nickname},")
}

func TestRender_SubstitutionIsSinglePass(t *testing.T) {
	msg, err := Render(SoftReminder, testCustomer("{dueDate}", 9000), "Friday")
	require.NoError(t, err)
	assert.Contains(t, msg, "Hi {dueDate},")
	assert.Contains(t, msg, "due on Friday.")
}

func TestRender_UnknownOffer(t *testing.T) {
	_, err := Render("Loyalty Bonus", testCustomer("Priya Singh", 9000), "")
	assert.ErrorIs(t, err, ErrUnknownOfferType)
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name string
		risk int
		emi  int64
		want Type
		ev   string
	}{
		{"high risk large emi", 80, 20000, PaymentHoliday, "3200"},
		{"low risk small emi", 20, 5000, SoftReminder, "50"},
		{"tie keeps catalog order", 50, 20000, GracePeriod, "1000"},
		{"zero risk", 0, 20000, SoftReminder, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Recommend(tt.risk, money.FromInt(tt.emi))
			assert.Equal(t, tt.want, rec.Type)
			assert.Equal(t, tt.ev, rec.ExpectedValue.String())
		})
	}
}
