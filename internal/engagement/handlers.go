package engagement

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/riskwatch/internal/interventions"
	"github.com/mbd888/riskwatch/internal/offers"
	"github.com/mbd888/riskwatch/internal/roster"
	"github.com/mbd888/riskwatch/internal/validation"
)

// Handler provides HTTP endpoints for the engagement console.
type Handler struct {
	composer *Composer
}

// NewHandler creates a new engagement handler.
func NewHandler(composer *Composer) *Handler {
	return &Handler{composer: composer}
}

// RegisterRoutes sets up composition routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/compositions", h.OpenComposition)
	r.GET("/compositions/:id", h.GetComposition)
	r.PUT("/compositions/:id/customer", h.SetCustomer)
	r.PUT("/compositions/:id/offer", h.SetOffer)
	r.PUT("/compositions/:id/channel", h.SetChannel)
	r.PUT("/compositions/:id/message", h.SetMessage)
	r.GET("/compositions/:id/preview", h.Preview)
	r.POST("/compositions/:id/send", h.Send)
	r.DELETE("/compositions/:id", h.DiscardComposition)
}

type openRequest struct {
	CustomerID string `json:"customerId"`
	OfferType  string `json:"offerType"`
	Channel    string `json:"channel"`
}

// OpenComposition handles POST /v1/compositions
//
// The body is optional; any selections it carries are applied in order.
func (h *Handler) OpenComposition(c *gin.Context) {
	var req openRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	if errs := validation.Check(validation.ID("customerId", req.CustomerID)); len(errs) > 0 {
		validation.Respond(c, errs)
		return
	}

	comp, err := h.composer.Open(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	apply := func() error {
		if req.CustomerID != "" {
			if err := comp.SelectCustomer(ctx, req.CustomerID); err != nil {
				return err
			}
		}
		if req.OfferType != "" {
			t, err := offers.Parse(req.OfferType)
			if err != nil {
				return err
			}
			if err := comp.SelectOffer(t); err != nil {
				return err
			}
		}
		if req.Channel != "" {
			ch, err := interventions.ParseChannel(req.Channel)
			if err != nil {
				return err
			}
			return comp.SelectChannel(ch)
		}
		return nil
	}
	if err := apply(); err != nil {
		_ = h.composer.Discard(comp.ID())
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"composition": comp.View()})
}

// GetComposition handles GET /v1/compositions/:id
func (h *Handler) GetComposition(c *gin.Context) {
	comp, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"composition": comp.View()})
}

type customerRequest struct {
	CustomerID string `json:"customerId"`
}

// SetCustomer handles PUT /v1/compositions/:id/customer
//
// An empty customerId clears the selection.
func (h *Handler) SetCustomer(c *gin.Context) {
	comp, ok := h.lookup(c)
	if !ok {
		return
	}
	var req customerRequest
	if !bind(c, &req) {
		return
	}
	if errs := validation.Check(validation.ID("customerId", req.CustomerID)); len(errs) > 0 {
		validation.Respond(c, errs)
		return
	}
	var err error
	if req.CustomerID == "" {
		err = comp.ClearCustomer()
	} else {
		err = comp.SelectCustomer(c.Request.Context(), req.CustomerID)
	}
	h.respond(c, comp, err)
}

type offerRequest struct {
	OfferType string `json:"offerType"`
}

// SetOffer handles PUT /v1/compositions/:id/offer
func (h *Handler) SetOffer(c *gin.Context) {
	comp, ok := h.lookup(c)
	if !ok {
		return
	}
	var req offerRequest
	if !bind(c, &req) {
		return
	}
	if req.OfferType == "" {
		h.respond(c, comp, comp.ClearOffer())
		return
	}
	t, err := offers.Parse(req.OfferType)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, comp, comp.SelectOffer(t))
}

type channelRequest struct {
	Channel string `json:"channel"`
}

// SetChannel handles PUT /v1/compositions/:id/channel
func (h *Handler) SetChannel(c *gin.Context) {
	comp, ok := h.lookup(c)
	if !ok {
		return
	}
	var req channelRequest
	if !bind(c, &req) {
		return
	}
	if req.Channel == "" {
		h.respond(c, comp, comp.ClearChannel())
		return
	}
	ch, err := interventions.ParseChannel(req.Channel)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, comp, comp.SelectChannel(ch))
}

type messageRequest struct {
	Message string `json:"message"`
}

// SetMessage handles PUT /v1/compositions/:id/message
//
// An empty message restores the offer template.
func (h *Handler) SetMessage(c *gin.Context) {
	comp, ok := h.lookup(c)
	if !ok {
		return
	}
	var req messageRequest
	if !bind(c, &req) {
		return
	}
	h.respond(c, comp, comp.EditMessage(validation.SanitizeText(req.Message, validation.MaxMessageLength)))
}

// Preview handles GET /v1/compositions/:id/preview
func (h *Handler) Preview(c *gin.Context) {
	comp, ok := h.lookup(c)
	if !ok {
		return
	}
	if _, err := comp.RenderPreview(); err != nil {
		writeError(c, err)
		return
	}
	v := comp.View()
	c.JSON(http.StatusOK, gin.H{
		"message":   v.Message,
		"length":    v.Length,
		"maxLength": v.MaxLength,
		"channel":   v.Channel,
		"valid":     v.Channel != "" && v.Problem == "",
		"problem":   v.Problem,
	})
}

// Send handles POST /v1/compositions/:id/send
func (h *Handler) Send(c *gin.Context) {
	comp, ok := h.lookup(c)
	if !ok {
		return
	}
	iv, err := comp.Send(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"intervention": iv,
		"composition":  comp.View(),
	})
}

// DiscardComposition handles DELETE /v1/compositions/:id
func (h *Handler) DiscardComposition(c *gin.Context) {
	if err := h.composer.Discard(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) lookup(c *gin.Context) (*Composition, bool) {
	comp, err := h.composer.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return comp, true
}

func (h *Handler) respond(c *gin.Context, comp *Composition, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"composition": comp.View()})
}

func bind(c *gin.Context, dst any) bool {
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
	case errors.Is(err, ErrRegistryFull):
		status, code = http.StatusServiceUnavailable, "too_many_compositions"
	case errors.Is(err, ErrNotFound), errors.Is(err, roster.ErrNotFound), errors.Is(err, interventions.ErrUnknownCustomer):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrAlreadySent):
		status, code = http.StatusConflict, "already_sent"
	case errors.Is(err, ErrNotReady):
		status, code = http.StatusConflict, "not_ready"
	case errors.Is(err, ErrMessageTooLong):
		status, code = http.StatusUnprocessableEntity, "message_too_long"
	case errors.Is(err, offers.ErrUnknownOfferType):
		status, code = http.StatusBadRequest, "unknown_offer_type"
	case errors.Is(err, interventions.ErrInvalidChannel):
		status, code = http.StatusBadRequest, "invalid_channel"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
