package dto

import (
	"time"

	"github.com/assistly/billing/internal/domain/coupon"
	"github.com/assistly/billing/internal/domain/redemption"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/service"
	"github.com/assistly/billing/internal/types"
	"github.com/assistly/billing/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CreateCouponRequest represents the request to create a new coupon
type CreateCouponRequest struct {
	Code              string                   `json:"code" validate:"required"`
	Name              string                   `json:"name" validate:"required"`
	Type              types.CouponType         `json:"type" validate:"required"`
	DiscountType      types.DiscountType       `json:"discount_type" validate:"required"`
	DiscountValue     decimal.Decimal          `json:"discount_value"`
	MaxUses           *int                     `json:"max_uses,omitempty" validate:"omitempty,gt=0"`
	MaxUsesPerUser    int                      `json:"max_uses_per_user" validate:"gte=0"`
	MinPurchaseAmount *decimal.Decimal         `json:"min_purchase_amount,omitempty"`
	TierEligibility   []types.SubscriptionTier `json:"tier_eligibility,omitempty"`
	ValidFrom         *time.Time               `json:"valid_from,omitempty"`
	ValidUntil        *time.Time               `json:"valid_until,omitempty"`
	// IsActive defaults to true
	IsActive   *bool                   `json:"is_active,omitempty"`
	CampaignID *string                 `json:"campaign_id,omitempty"`
	Rules      []ValidationRuleRequest `json:"rules,omitempty" validate:"dive"`
}

// ValidationRuleRequest attaches a custom predicate to a new coupon
type ValidationRuleRequest struct {
	RuleType types.ValidationRuleType `json:"rule_type" validate:"required"`
	Params   map[string]any           `json:"params,omitempty"`
}

func (r *CreateCouponRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.MinPurchaseAmount != nil && r.MinPurchaseAmount.IsNegative() {
		return ierr.NewError("min_purchase_amount cannot be negative").
			WithHint("Minimum purchase amount must be zero or greater").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToCoupon converts the request; the coupon's own Validate runs when it is stored
func (r *CreateCouponRequest) ToCoupon() *coupon.Coupon {
	return &coupon.Coupon{
		Code:              coupon.NormalizeCode(r.Code),
		Name:              r.Name,
		Type:              r.Type,
		DiscountType:      r.DiscountType,
		DiscountValue:     r.DiscountValue,
		MaxUses:           r.MaxUses,
		MaxUsesPerUser:    r.MaxUsesPerUser,
		MinPurchaseAmount: r.MinPurchaseAmount,
		TierEligibility:   r.TierEligibility,
		ValidFrom:         lo.FromPtr(r.ValidFrom),
		ValidUntil:        lo.FromPtr(r.ValidUntil),
		IsActive:          lo.FromPtrOr(r.IsActive, true),
		CampaignID:        r.CampaignID,
		ValidationRules: lo.Map(r.Rules, func(rule ValidationRuleRequest, _ int) *coupon.ValidationRule {
			return &coupon.ValidationRule{
				RuleType: rule.RuleType,
				Params:   coupon.RuleParams(rule.Params),
				IsActive: true,
			}
		}),
	}
}

// ValidateCouponRequest checks whether a user may apply a code to a purchase.
// The client IP address and user agent are taken from the HTTP request, the subscription tier from storage.
type ValidateCouponRequest struct {
	Code              string                 `json:"code" validate:"required"`
	UserID            string                 `json:"user_id" validate:"required"`
	CartTotal         decimal.Decimal `json:"cart_total"`
	DeviceFingerprint string          `json:"device_fingerprint,omitempty"`
}

func (r *ValidateCouponRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.CartTotal.IsNegative() {
		return ierr.NewError("cart_total cannot be negative").
			WithHint("Cart total must be zero or greater").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *ValidateCouponRequest) ToValidationContext(ip, userAgent string) coupon.ValidationContext {
	return coupon.ValidationContext{
		CartTotal:         r.CartTotal,
		IPAddress:         ip,
		UserAgent:         userAgent,
		DeviceFingerprint: r.DeviceFingerprint,
	}
}

func (r *ValidateCouponRequest) ToServiceRequest(ip, userAgent string) service.ValidateCouponRequest {
	return service.ValidateCouponRequest{
		Code:    r.Code,
		UserID:  r.UserID,
		Context: r.ToValidationContext(ip, userAgent),
	}
}

// CouponValidationResponse is the verdict returned to clients. Fraud signals stay server side.
type CouponValidationResponse struct {
	IsValid  bool                              `json:"is_valid"`
	Errors   []types.CouponValidationErrorCode `json:"errors"`
	Code     string                            `json:"code,omitempty"`
	Discount *coupon.DiscountCalculation       `json:"discount,omitempty"`
}

func NewCouponValidationResponse(result *coupon.ValidationResult) *CouponValidationResponse {
	if result == nil {
		return nil
	}
	resp := &CouponValidationResponse{
		IsValid:  result.IsValid,
		Errors:   result.Errors,
		Discount: result.Discount,
	}
	if resp.Errors == nil {
		resp.Errors = []types.CouponValidationErrorCode{}
	}
	if result.Coupon != nil {
		resp.Code = result.Coupon.Code
	}
	return resp
}

// DiscountPreviewRequest computes a coupon's effect on an amount without validating it
type DiscountPreviewRequest struct {
	Code   string          `json:"code" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

func (r *DiscountPreviewRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// RedeemCouponRequest applies a coupon to a purchase of CartTotal
type RedeemCouponRequest struct {
	ValidateCouponRequest
}

func (r *RedeemCouponRequest) ToServiceRequest(ip, userAgent string) service.RedeemCouponRequest {
	return service.RedeemCouponRequest{
		Code:    r.Code,
		UserID:  r.UserID,
		Context: r.ToValidationContext(ip, userAgent),
	}
}

type RedeemCouponResponse struct {
	Validation *CouponValidationResponse `json:"validation"`
	Redemption *redemption.Redemption    `json:"redemption,omitempty"`
}

func NewRedeemCouponResponse(resp *service.RedeemCouponResponse) *RedeemCouponResponse {
	return &RedeemCouponResponse{
		Validation: NewCouponValidationResponse(resp.Result),
		Redemption: resp.Redemption,
	}
}
