package service

import (
	"context"
	"time"

	"github.com/assistly/billing/internal/domain/coupon"
	"github.com/assistly/billing/internal/domain/proration"
	"github.com/assistly/billing/internal/domain/redemption"
	"github.com/assistly/billing/internal/domain/subscription"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/publisher"
	"github.com/assistly/billing/internal/sentry"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// UpgradePreviewRequest previews moving a subscription to NewTier with an optional coupon.
// The coupon is validated for the subscription's owner.
type UpgradePreviewRequest struct {
	SubscriptionID            string
	NewTier                   types.SubscriptionTier
	CouponCode                string
	CurrentTierEffectivePrice *decimal.Decimal
	ReferenceTime             time.Time
	Context                   coupon.ValidationContext
}

// UpgradePreviewResponse holds the coupon verdict, when a code was given, and the resulting proration
type UpgradePreviewResponse struct {
	Coupon    *coupon.ValidationResult `json:"coupon,omitempty"`
	Proration *proration.Calculation   `json:"proration"`
	// CouponApplied is false when no code was given, the coupon was rejected, or it does not reduce price
	CouponApplied bool `json:"coupon_applied"`
}

// UpgradeRequest moves a subscription to NewTier, redeeming CouponCode against the new tier's prorated cost.
// It is always priced at the current time against the subscription's stored base price.
type UpgradeRequest struct {
	SubscriptionID string
	NewTier        types.SubscriptionTier
	CouponCode     string
	Context        coupon.ValidationContext
}

// UpgradeResponse reports an applied upgrade. Event is nil when the coupon was rejected, in which case
// nothing was changed.
type UpgradeResponse struct {
	Coupon        *coupon.ValidationResult `json:"coupon,omitempty"`
	Event         *proration.Event         `json:"event,omitempty"`
	Redemption    *redemption.Redemption   `json:"redemption,omitempty"`
	CouponApplied bool                     `json:"coupon_applied"`
}

// CheckoutService composes coupon validation with proration
type CheckoutService interface {
	PreviewUpgrade(ctx context.Context, req UpgradePreviewRequest) (*UpgradePreviewResponse, error)

	// ApplyUpgrade validates the coupon, then consumes its use, records the redemption, charges the campaign,
	// supersedes the subscription and records the proration event in one transaction. A coupon that is valid
	// but does not reduce price leaves the change uncouponed and unredeemed.
	ApplyUpgrade(ctx context.Context, req UpgradeRequest) (*UpgradeResponse, error)
}

type checkoutService struct {
	ServiceParams
	validation CouponValidationService
}

func NewCheckoutService(params ServiceParams, validation CouponValidationService) CheckoutService {
	return &checkoutService{
		ServiceParams: params,
		validation:    validation,
	}
}

// PreviewUpgrade validates the coupon for the subscription's owner, using the new tier's prorated cost as
// the cart total, then prorates again with the coupon applied to the new tier.
func (s *checkoutService) PreviewUpgrade(ctx context.Context, req UpgradePreviewRequest) (*UpgradePreviewResponse, error) {
	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	opts := proration.Options{
		CurrentTierEffectivePrice: req.CurrentTierEffectivePrice,
		ReferenceTime:             req.ReferenceTime,
	}

	base, err := s.Calculator.Calculate(sub, req.NewTier, opts)
	if err != nil {
		return nil, err
	}

	resp := &UpgradePreviewResponse{Proration: base}
	if req.CouponCode == "" {
		return resp, nil
	}

	result, err := s.validateForUpgrade(ctx, sub, req.CouponCode, base, req.Context)
	if err != nil {
		return nil, err
	}
	resp.Coupon = result

	terms := couponTerms(result)
	if terms == nil {
		return resp, nil
	}

	opts.ReferenceTime = base.ReferenceTime
	opts.NewTierCoupon = terms
	withCoupon, err := s.Calculator.Calculate(sub, req.NewTier, opts)
	if err != nil {
		return nil, err
	}

	resp.Proration = withCoupon
	resp.CouponApplied = true
	return resp, nil
}

func (s *checkoutService) ApplyUpgrade(ctx context.Context, req UpgradeRequest) (*UpgradeResponse, error) {
	span, ctx := s.Sentry.StartServiceSpan(ctx, "checkout.apply_upgrade", map[string]interface{}{
		"subscription_id": req.SubscriptionID,
		"new_tier":        req.NewTier,
		"coupon_code":     req.CouponCode,
	})
	defer sentry.FinishSpan(span)

	resp := &UpgradeResponse{}
	change := tierChange{
		subscriptionID: req.SubscriptionID,
		newTier:        req.NewTier,
	}

	var (
		c    *coupon.Coupon
		red  *redemption.Redemption
		lost types.CouponValidationErrorCode
	)

	if req.CouponCode != "" {
		sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
		if err != nil {
			return nil, err
		}

		base, err := s.Calculator.Calculate(sub, req.NewTier, proration.Options{
			CurrentTierEffectivePrice: lo.ToPtr(sub.BasePriceUSD),
		})
		if err != nil {
			return nil, err
		}

		result, err := s.validateForUpgrade(ctx, sub, req.CouponCode, base, req.Context)
		if err != nil {
			return &UpgradeResponse{Coupon: result}, err
		}
		resp.Coupon = result
		if !result.IsValid {
			return resp, nil
		}

		if terms := couponTerms(result); terms != nil {
			c = result.Coupon
			change.coupon = terms
			change.inTx = func(ctx context.Context, sub *subscription.Subscription, calc *proration.Calculation) error {
				var err error
				if lost, err = s.consumeUse(ctx, c, sub.UserID); err != nil {
					return err
				}

				discount := coupon.CalculateDiscount(c, calc.NewTierProratedCostUSD)
				red = newRedemption(c, sub.UserID, discount, req.Context)
				if err := s.RedemptionRepo.Create(ctx, red); err != nil {
					return err
				}
				return s.chargeCampaign(ctx, c, discount)
			}
		}
	}

	event, calc, err := s.changeTier(ctx, change)
	if err != nil {
		if lost != "" {
			s.Logger.Infow("coupon limit reached during upgrade",
				"subscription_id", req.SubscriptionID,
				"coupon_code", c.Code,
				"error_code", lost,
			)
			resp.Coupon = &coupon.ValidationResult{
				Coupon: c,
				Errors: []types.CouponValidationErrorCode{lost},
			}
			return resp, nil
		}
		if ierr.IsInfrastructure(err) {
			s.Sentry.CaptureWithTags(ctx, err, map[string]string{
				"operation":       "apply_upgrade",
				"subscription_id": req.SubscriptionID,
			})
		}
		return nil, err
	}

	s.tierChanged(ctx, event, calc)
	resp.Event = event

	if red != nil {
		s.Metrics.ObserveRedemption(red.DiscountType, red.DiscountAmount)
		s.publish(ctx, publisher.NewEvent(types.EventCouponRedeemed, red.UserID, red))
		resp.Redemption = red
		resp.CouponApplied = true
	}

	return resp, nil
}

// validateForUpgrade runs the coupon pipeline for the subscription's owner with the new tier's prorated cost
// as the cart total
func (s *checkoutService) validateForUpgrade(
	ctx context.Context,
	sub *subscription.Subscription,
	code string,
	base *proration.Calculation,
	vctx coupon.ValidationContext,
) (*coupon.ValidationResult, error) {
	vctx.CartTotal = base.NewTierProratedCostUSD
	return s.validation.ValidateCoupon(ctx, ValidateCouponRequest{
		Code:    code,
		UserID:  sub.UserID,
		Context: vctx,
	})
}

// couponTerms returns the terms to prorate with, or nil when the coupon was rejected or grants something
// other than a price reduction
func couponTerms(result *coupon.ValidationResult) *proration.CouponTerms {
	if !result.IsValid || !result.Coupon.DiscountType.ReducesPrice() {
		return nil
	}
	return &proration.CouponTerms{
		Code:          result.Coupon.Code,
		DiscountType:  result.Coupon.DiscountType,
		DiscountValue: result.Coupon.DiscountValue,
	}
}
