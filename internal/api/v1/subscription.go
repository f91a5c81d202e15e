package v1

import (
	"net/http"

	"github.com/assistly/billing/internal/api/dto"
	"github.com/assistly/billing/internal/domain/proration"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	prorationService proration.Service
	logger           *logger.Logger
}

func NewSubscriptionHandler(prorationService proration.Service, logger *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		prorationService: prorationService,
		logger:           logger,
	}
}

// @Summary Preview a tier change
// @Description Calculates the prorated cost of moving a subscription to another tier without applying it
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.ProrationPreviewRequest true "Proration preview request"
// @Success 200 {object} proration.Calculation
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /subscriptions/{id}/proration-preview [post]
func (h *SubscriptionHandler) PreviewProration(c *gin.Context) {
	id := c.Param("id")

	var req dto.ProrationPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	calc, err := h.prorationService.Preview(c.Request.Context(), id, req.NewTier, req.ToOptions())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, calc)
}

// @Summary Change a subscription's tier
// @Description Applies a tier change and records the proration event
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.TierChangeRequest true "Tier change request"
// @Success 201 {object} proration.Event
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /subscriptions/{id}/tier-change [post]
func (h *SubscriptionHandler) ChangeTier(c *gin.Context) {
	id := c.Param("id")

	var req dto.TierChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	event, err := h.prorationService.ApplyTierChange(c.Request.Context(), req.ToTierChangeRequest(id))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// @Summary List proration events
// @Description Lists the tier changes applied to a subscription, newest first
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.ListProrationEventsResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /subscriptions/{id}/proration-events [get]
func (h *SubscriptionHandler) ListProrationEvents(c *gin.Context) {
	events, err := h.prorationService.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListProrationEventsResponse(events))
}
