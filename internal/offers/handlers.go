package offers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/riskwatch/internal/roster"
)

// CustomerLookup resolves the customer an offer is rendered for.
type CustomerLookup interface {
	GetByID(ctx context.Context, id string) (*roster.Customer, error)
}

// Handler provides HTTP endpoints for the offer catalog.
type Handler struct {
	customers CustomerLookup
	dueDate   string
}

// NewHandler creates a new offers handler. dueDate fills {dueDate} when the
// request does not supply one; empty means DefaultDueDateLabel.
func NewHandler(customers CustomerLookup, dueDate string) *Handler {
	if dueDate == "" {
		dueDate = DefaultDueDateLabel
	}
	return &Handler{customers: customers, dueDate: dueDate}
}

// RegisterRoutes sets up offer catalog routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/offers", h.ListOffers)
	r.GET("/offers/:type", h.GetOffer)
	r.POST("/offers/render", h.RenderOffer)
}

// ListOffers handles GET /v1/offers
func (h *Handler) ListOffers(c *gin.Context) {
	all := List()
	c.JSON(http.StatusOK, gin.H{
		"offers": all,
		"count":  len(all),
	})
}

// GetOffer handles GET /v1/offers/:type
func (h *Handler) GetOffer(c *gin.Context) {
	t, err := Parse(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
		return
	}
	tpl, _ := Get(t)
	c.JSON(http.StatusOK, gin.H{"offer": tpl})
}

type renderRequest struct {
	OfferType  string `json:"offerType" binding:"required"`
	CustomerID string `json:"customerId" binding:"required"`
	DueDate    string `json:"dueDate"`
}

// RenderOffer handles POST /v1/offers/render
func (h *Handler) RenderOffer(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	t, err := Parse(req.OfferType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_offer_type", "message": err.Error()})
		return
	}

	customer, err := h.customers.GetByID(c.Request.Context(), req.CustomerID)
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	dueDate := req.DueDate
	if dueDate == "" {
		dueDate = h.dueDate
	}
	message, err := Render(t, customer, dueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_offer_type", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"offerType":  t,
		"customerId": customer.ID,
		"message":    message,
		"length":     len([]rune(message)),
	})
}
