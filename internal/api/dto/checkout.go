package dto

import (
	"time"

	"github.com/assistly/billing/internal/domain/coupon"
	"github.com/assistly/billing/internal/domain/proration"
	"github.com/assistly/billing/internal/domain/redemption"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/service"
	"github.com/assistly/billing/internal/types"
	"github.com/assistly/billing/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// UpgradePreviewRequest previews a tier change with an optional coupon on the new tier
type UpgradePreviewRequest struct {
	SubscriptionID string                 `json:"subscription_id" validate:"required"`
	NewTier        types.SubscriptionTier `json:"new_tier" validate:"required"`
	CouponCode     string                 `json:"coupon_code,omitempty"`
	// CurrentTierEffectivePrice and ReferenceTime are what-if overrides, honored by previews only
	CurrentTierEffectivePrice *decimal.Decimal `json:"current_tier_effective_price,omitempty"`
	ReferenceTime             *time.Time       `json:"reference_time,omitempty"`
	DeviceFingerprint         string           `json:"device_fingerprint,omitempty"`
}

func (r *UpgradePreviewRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.NewTier.Validate(); err != nil {
		return err
	}
	if r.CurrentTierEffectivePrice != nil && r.CurrentTierEffectivePrice.IsNegative() {
		return ierr.NewError("current_tier_effective_price cannot be negative").
			WithHint("Current tier effective price must be zero or greater").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *UpgradePreviewRequest) ToServiceRequest(ip, userAgent string) service.UpgradePreviewRequest {
	return service.UpgradePreviewRequest{
		SubscriptionID:            r.SubscriptionID,
		NewTier:                   r.NewTier,
		CouponCode:                r.CouponCode,
		CurrentTierEffectivePrice: r.CurrentTierEffectivePrice,
		ReferenceTime:             lo.FromPtr(r.ReferenceTime),
		Context: coupon.ValidationContext{
			IPAddress:         ip,
			UserAgent:         userAgent,
			DeviceFingerprint: r.DeviceFingerprint,
		},
	}
}

type UpgradePreviewResponse struct {
	Coupon        *CouponValidationResponse `json:"coupon,omitempty"`
	Proration     *proration.Calculation    `json:"proration"`
	CouponApplied bool                      `json:"coupon_applied"`
}

func NewUpgradePreviewResponse(resp *service.UpgradePreviewResponse) *UpgradePreviewResponse {
	return &UpgradePreviewResponse{
		Coupon:        NewCouponValidationResponse(resp.Coupon),
		Proration:     resp.Proration,
		CouponApplied: resp.CouponApplied,
	}
}

// UpgradeRequest applies a tier change with an optional coupon on the new tier
type UpgradeRequest struct {
	SubscriptionID    string                 `json:"subscription_id" validate:"required"`
	NewTier           types.SubscriptionTier `json:"new_tier" validate:"required"`
	CouponCode        string                 `json:"coupon_code,omitempty"`
	DeviceFingerprint string                 `json:"device_fingerprint,omitempty"`
}

func (r *UpgradeRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.NewTier.Validate()
}

func (r *UpgradeRequest) ToServiceRequest(ip, userAgent string) service.UpgradeRequest {
	return service.UpgradeRequest{
		SubscriptionID: r.SubscriptionID,
		NewTier:        r.NewTier,
		CouponCode:     r.CouponCode,
		Context: coupon.ValidationContext{
			IPAddress:         ip,
			UserAgent:         userAgent,
			DeviceFingerprint: r.DeviceFingerprint,
		},
	}
}

type UpgradeResponse struct {
	Coupon        *CouponValidationResponse `json:"coupon,omitempty"`
	Event         *proration.Event          `json:"event,omitempty"`
	Redemption    *redemption.Redemption    `json:"redemption,omitempty"`
	CouponApplied bool                      `json:"coupon_applied"`
}

func NewUpgradeResponse(resp *service.UpgradeResponse) *UpgradeResponse {
	return &UpgradeResponse{
		Coupon:        NewCouponValidationResponse(resp.Coupon),
		Event:         resp.Event,
		Redemption:    resp.Redemption,
		CouponApplied: resp.CouponApplied,
	}
}
