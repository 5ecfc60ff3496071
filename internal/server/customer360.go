package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/riskwatch/internal/interventions"
	"github.com/mbd888/riskwatch/internal/offers"
	"github.com/mbd888/riskwatch/internal/roster"
	"github.com/mbd888/riskwatch/internal/validation"
)

// Customer360 is everything an operator needs about one borrower.
type Customer360 struct {
	Customer         *roster.Customer              `json:"customer"`
	Signals          roster.Signals                `json:"signals"`
	RecommendedOffer offers.Recommendation         `json:"recommendedOffer"`
	Interventions    []*interventions.Intervention `json:"interventions"`
}

func (s *Server) customer360(ctx context.Context, customerID string) (*Customer360, error) {
	var (
		customer *roster.Customer
		err      error
	)
	if customerID == "" {
		customer, err = s.roster.First(ctx)
	} else {
		customer, err = s.roster.GetByID(ctx, customerID)
	}
	if err != nil {
		return nil, err
	}

	history, err := s.interventions.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []*interventions.Intervention{}
	}
	return &Customer360{
		Customer:         customer,
		Signals:          roster.Evaluate(customer),
		RecommendedOffer: offers.Recommend(customer.RiskScore, customer.EMIAmount),
		Interventions:    history,
	}, nil
}

// customer360Handler handles GET /v1/customer-360?customerId=
// Without customerId the highest-risk customer is shown.
func (s *Server) customer360Handler(c *gin.Context) {
	id := c.Query("customerId")
	if id != "" && !validation.IsValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": "customerId is malformed"})
		return
	}

	view, err := s.customer360(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, view)
	case errors.Is(err, roster.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Customer not found"})
	case errors.Is(err, roster.ErrEmptyRoster):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "empty_portfolio", "message": "No customers are loaded"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
