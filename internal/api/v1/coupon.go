package v1

import (
	"net/http"

	"github.com/assistly/billing/internal/api/dto"
	"github.com/assistly/billing/internal/domain/coupon"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/service"
	"github.com/gin-gonic/gin"
)

type CouponHandler struct {
	couponService     service.CouponService
	validationService service.CouponValidationService
	logger            *logger.Logger
}

func NewCouponHandler(
	couponService service.CouponService,
	validationService service.CouponValidationService,
	logger *logger.Logger,
) *CouponHandler {
	return &CouponHandler{
		couponService:     couponService,
		validationService: validationService,
		logger:            logger,
	}
}

// @Summary Create a coupon
// @Tags Coupons
// @Accept json
// @Produce json
// @Param coupon body dto.CreateCouponRequest true "Coupon request"
// @Success 201 {object} coupon.Coupon
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /coupons [post]
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var req dto.CreateCouponRequest
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

	created, err := h.couponService.CreateCoupon(c.Request.Context(), req.ToCoupon())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// @Summary Validate a coupon
// @Description Runs every coupon check for the user and purchase. A rejected coupon is a 400 carrying its error code.
// @Tags Coupons
// @Accept json
// @Produce json
// @Param request body dto.ValidateCouponRequest true "Validation request"
// @Success 200 {object} dto.CouponValidationResponse
// @Failure 400 {object} dto.CouponValidationResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /coupons/validate [post]
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	var req dto.ValidateCouponRequest
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

	result, err := h.validationService.ValidateCoupon(
		c.Request.Context(),
		req.ToServiceRequest(c.ClientIP(), c.Request.UserAgent()),
	)
	if err != nil {
		c.Error(withResultCode(err, result))
		return
	}

	c.JSON(verdictStatus(result), dto.NewCouponValidationResponse(result))
}

// @Summary Preview a coupon's discount
// @Description Computes what a coupon takes off an amount without running the validation checks
// @Tags Coupons
// @Accept json
// @Produce json
// @Param request body dto.DiscountPreviewRequest true "Discount preview request"
// @Success 200 {object} coupon.DiscountCalculation
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /coupons/discount-preview [post]
func (h *CouponHandler) PreviewDiscount(c *gin.Context) {
	var req dto.DiscountPreviewRequest
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

	calc, err := h.couponService.PreviewDiscount(c.Request.Context(), req.Code, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, calc)
}

// @Summary Redeem a coupon
// @Description Validates the coupon and records the redemption. A rejected coupon is a 400 carrying its error code.
// @Tags Coupons
// @Accept json
// @Produce json
// @Param request body dto.RedeemCouponRequest true "Redemption request"
// @Success 201 {object} dto.RedeemCouponResponse
// @Failure 400 {object} dto.RedeemCouponResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /coupons/redeem [post]
func (h *CouponHandler) RedeemCoupon(c *gin.Context) {
	var req dto.RedeemCouponRequest
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

	resp, err := h.couponService.RedeemCoupon(
		c.Request.Context(),
		req.ToServiceRequest(c.ClientIP(), c.Request.UserAgent()),
	)
	if err != nil {
		var result *coupon.ValidationResult
		if resp != nil {
			result = resp.Result
		}
		c.Error(withResultCode(err, result))
		return
	}

	status := http.StatusCreated
	if !resp.Result.IsValid {
		status = http.StatusBadRequest
	}
	c.JSON(status, dto.NewRedeemCouponResponse(resp))
}

func verdictStatus(result *coupon.ValidationResult) int {
	if result.IsValid {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

// withResultCode attaches the VALIDATION_ERROR code of a failed run to the error returned to the client
func withResultCode(err error, result *coupon.ValidationResult) error {
	if result == nil {
		return err
	}
	return ierr.WithError(err).
		WithReportableDetails(map[string]any{"errors": result.Errors}).
		Error()
}
