package roster

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for the roster.
type Handler struct {
	service *Service
}

// NewHandler creates a new roster handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up read-only roster routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/customers", h.ListCustomers)
	r.GET("/customers/:id", h.GetCustomer)
	r.GET("/customers/:id/signals", h.GetSignals)
}

// RegisterAdminRoutes sets up the re-scoring route.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.PUT("/customers/:id/risk", h.UpdateRisk)
}

// ListCustomers handles GET /v1/customers?segment=&q=&limit=
func (h *Handler) ListCustomers(c *gin.Context) {
	var f Filter
	if s := c.Query("segment"); s != "" {
		seg, err := ParseSegment(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_segment",
				"message": "segment must be one of High, Medium, Low",
			})
			return
		}
		f.Segment = seg
	}
	f.Query = c.Query("q")
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			f.Limit = parsed
		}
	}

	customers, err := h.service.Search(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customers": customers,
		"count":     len(customers),
	})
}

// GetCustomer handles GET /v1/customers/:id
func (h *Handler) GetCustomer(c *gin.Context) {
	customer, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": customer})
}

// GetSignals handles GET /v1/customers/:id/signals
func (h *Handler) GetSignals(c *gin.Context) {
	customer, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": Evaluate(customer)})
}

// UpdateRisk handles PUT /v1/admin/customers/:id/risk
func (h *Handler) UpdateRisk(c *gin.Context) {
	var req RiskUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	customer, err := h.service.ApplyRiskUpdate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		switch {
		case errors.Is(err, ErrNotFound):
			status = http.StatusNotFound
			code = "not_found"
		case errors.Is(err, ErrInvalidCustomer):
			status = http.StatusBadRequest
			code = "invalid_update"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"customer": customer})
}

func (h *Handler) lookup(c *gin.Context) (*Customer, bool) {
	customer, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Customer not found",
			})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return nil, false
	}
	return customer, true
}
