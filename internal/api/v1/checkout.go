package v1

import (
	"net/http"

	"github.com/assistly/billing/internal/api/dto"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/service"
	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
	logger          *logger.Logger
}

func NewCheckoutHandler(checkoutService service.CheckoutService, logger *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		logger:          logger,
	}
}

// @Summary Preview an upgrade with a coupon
// @Description Validates the coupon against the subscription's current tier and prorates the change with it applied
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body dto.UpgradePreviewRequest true "Upgrade preview request"
// @Success 200 {object} dto.UpgradePreviewResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /checkout/upgrade-preview [post]
func (h *CheckoutHandler) PreviewUpgrade(c *gin.Context) {
	var req dto.UpgradePreviewRequest
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

	resp, err := h.checkoutService.PreviewUpgrade(
		c.Request.Context(),
		req.ToServiceRequest(c.ClientIP(), c.Request.UserAgent()),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUpgradePreviewResponse(resp))
}

// @Summary Apply an upgrade with a coupon
// @Description Validates the coupon, redeems it against the new tier's prorated cost and applies the tier change in one transaction. A rejected coupon is a 400 carrying its verdict; nothing is changed then.
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body dto.UpgradeRequest true "Upgrade request"
// @Success 201 {object} dto.UpgradeResponse
// @Failure 400 {object} dto.UpgradeResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /checkout/upgrade [post]
func (h *CheckoutHandler) ApplyUpgrade(c *gin.Context) {
	var req dto.UpgradeRequest
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

	resp, err := h.checkoutService.ApplyUpgrade(
		c.Request.Context(),
		req.ToServiceRequest(c.ClientIP(), c.Request.UserAgent()),
	)
	if err != nil {
		c.Error(err)
		return
	}

	if resp.Event == nil {
		c.JSON(http.StatusBadRequest, dto.NewUpgradeResponse(resp))
		return
	}
	c.JSON(http.StatusCreated, dto.NewUpgradeResponse(resp))
}
