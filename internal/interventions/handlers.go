package interventions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/riskwatch/internal/idgen"
	"github.com/mbd888/riskwatch/internal/offers"
	"github.com/mbd888/riskwatch/internal/pagination"
	"github.com/mbd888/riskwatch/internal/validation"
)

// Handler provides HTTP endpoints for interventions.
type Handler struct {
	service *Service
}

// NewHandler creates a new interventions handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up intervention routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/interventions", h.ListInterventions)
	r.GET("/interventions/summary", h.GetSummary)
	r.GET("/interventions/:id", h.GetIntervention)
	r.POST("/interventions", h.CreateIntervention)
	r.POST("/interventions/:id/sent", h.MarkSent)
	r.POST("/interventions/:id/response", h.RecordResponse)
	r.POST("/interventions/:id/complete", h.Complete)
}

// ListInterventions handles GET /v1/interventions
func (h *Handler) ListInterventions(c *gin.Context) {
	var filter ListFilter
	var err error

	if s := c.Query("status"); s != "" {
		if filter.Status, err = ParseStatus(s); err != nil {
			writeError(c, err)
			return
		}
	}
	if o := c.Query("outcome"); o != "" {
		if filter.Outcome, err = ParseOutcome(o); err != nil {
			writeError(c, err)
			return
		}
	}
	filter.CustomerID = c.Query("customerId")
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if filter.Cursor, err = pagination.Decode(c.Query("cursor")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": err.Error()})
		return
	}

	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"interventions": page.Interventions,
		"count":         len(page.Interventions),
		"nextCursor":    page.NextCursor,
		"hasMore":       page.HasMore,
	})
}

// GetSummary handles GET /v1/interventions/summary
func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetIntervention handles GET /v1/interventions/:id
func (h *Handler) GetIntervention(c *gin.Context) {
	iv, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intervention": iv})
}

type createRequest struct {
	CustomerID string `json:"customerId"`
	OfferType  string `json:"offerType"`
	Channel    string `json:"channel"`
	Message    string `json:"message"`
}

func (r createRequest) validate() validation.FieldErrors {
	return validation.Check(
		validation.Required("customerId", r.CustomerID),
		validation.ID("customerId", r.CustomerID),
		validation.Required("offerType", r.OfferType),
		validation.Required("channel", r.Channel),
		validation.MaxChars("message", r.Message, validation.MaxMessageLength),
	)
}

// CreateIntervention handles POST /v1/interventions
func (h *Handler) CreateIntervention(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		validation.Respond(c, errs)
		return
	}
	offerType, err := offers.Parse(req.OfferType)
	if err != nil {
		writeError(c, err)
		return
	}

	iv, err := h.service.Create(c.Request.Context(), CreateRequest{
		CustomerID: req.CustomerID,
		OfferType:  offerType,
		Channel:    Channel(req.Channel),
		Message:    req.Message,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"intervention": iv})
}

type versionRequest struct {
	Version *int `json:"version"`
}

// MarkSent handles POST /v1/interventions/:id/sent
func (h *Handler) MarkSent(c *gin.Context) {
	var req versionRequest
	if !bindOptional(c, &req) {
		return
	}
	iv, err := h.service.MarkSent(c.Request.Context(), c.Param("id"), req.Version)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intervention": iv})
}

type responseRequest struct {
	Accepted *bool `json:"accepted" binding:"required"`
	Version  *int  `json:"version"`
}

// RecordResponse handles POST /v1/interventions/:id/response
func (h *Handler) RecordResponse(c *gin.Context) {
	var req responseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	iv, err := h.service.RecordResponse(c.Request.Context(), c.Param("id"), *req.Accepted, req.Version)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intervention": iv})
}

// Complete handles POST /v1/interventions/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	var req versionRequest
	if !bindOptional(c, &req) {
		return
	}
	iv, err := h.service.Complete(c.Request.Context(), c.Param("id"), req.Version)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intervention": iv})
}

// bindOptional binds a JSON body when one is present.
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrUnknownCustomer):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, ErrVersionConflict):
		status, code = http.StatusConflict, "version_conflict"
	case errors.Is(err, offers.ErrUnknownOfferType):
		status, code = http.StatusBadRequest, "unknown_offer_type"
	case errors.Is(err, ErrInvalidChannel):
		status, code = http.StatusBadRequest, "invalid_channel"
	case errors.Is(err, ErrInvalidFilter):
		status, code = http.StatusBadRequest, "invalid_filter"
	case errors.Is(err, idgen.ErrMalformedID):
		status, code = http.StatusBadRequest, "invalid_cursor"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
