package portfolio

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for portfolio aggregates.
type Handler struct {
	service *Service
}

// NewHandler creates a new portfolio handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up portfolio routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/portfolio/overview", h.GetOverview)
	r.GET("/portfolio/segments", h.GetSegments)
	r.POST("/portfolio/simulate", h.Simulate)
}

// GetOverview handles GET /v1/portfolio/overview
func (h *Handler) GetOverview(c *gin.Context) {
	o, err := h.service.Overview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"overview": o})
}

// GetSegments handles GET /v1/portfolio/segments
func (h *Handler) GetSegments(c *gin.Context) {
	counts, groups, err := h.service.Segments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"segments":  counts,
		"customers": groups,
	})
}

type simulateRequest struct {
	Scenario  string  `json:"scenario" binding:"required"`
	Intensity float64 `json:"intensity"`
}

// Simulate handles POST /v1/portfolio/simulate
func (h *Handler) Simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	scenario, err := ParseScenario(req.Scenario)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_scenario", "message": err.Error()})
		return
	}
	if req.Intensity == 0 {
		req.Intensity = 1.0
	}

	result, err := h.service.Simulate(c.Request.Context(), scenario, req.Intensity)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidIntensity):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_intensity", "message": err.Error()})
		case errors.Is(err, ErrEmptyPortfolio):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "empty_portfolio", "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"simulation": result})
}
