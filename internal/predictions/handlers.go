package predictions

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Fetcher returns the collaborator payload.
type Fetcher interface {
	Fetch(ctx context.Context) (*Payload, error)
}

// Pinger checks reachability without fetching a payload.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler relays the prediction payload to HTTP callers.
type Handler struct {
	fetcher Fetcher
}

// NewHandler creates a new predictions handler.
func NewHandler(fetcher Fetcher) *Handler {
	return &Handler{fetcher: fetcher}
}

// RegisterRoutes mounts GET /predictions on the versioned group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/predictions", h.Relay)
}

// RegisterLegacyRoutes mounts the unversioned /predict and /portfolio routes
// existing dashboards call.
func (h *Handler) RegisterLegacyRoutes(r gin.IRoutes) {
	r.GET("/predict", h.Relay)
	r.GET("/portfolio", h.Relay)
}

// Relay handles GET /predict, GET /portfolio and GET /v1/predictions
func (h *Handler) Relay(c *gin.Context) {
	p, err := h.fetcher.Fetch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "ML Service unavailable",
			"details": err.Error(),
		})
		return
	}
	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(http.StatusOK, contentType, p.Body)
}
