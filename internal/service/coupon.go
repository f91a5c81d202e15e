package service

import (
	"context"
	"time"

	"github.com/assistly/billing/internal/domain/coupon"
	"github.com/assistly/billing/internal/domain/redemption"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/publisher"
	"github.com/assistly/billing/internal/sentry"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// RedeemCouponRequest applies a coupon to a purchase of Context.CartTotal
type RedeemCouponRequest struct {
	Code    string
	UserID  string
	Context coupon.ValidationContext
}

// RedeemCouponResponse carries the validation verdict and, when it passed, the stored redemption
type RedeemCouponResponse struct {
	Result     *coupon.ValidationResult `json:"result"`
	Redemption *redemption.Redemption   `json:"redemption,omitempty"`
}

// CouponService covers the coupon operations outside the validation pipeline
type CouponService interface {
	// CreateCoupon stores a new coupon with its validation rules. The code is normalized first.
	CreateCoupon(ctx context.Context, c *coupon.Coupon) (*coupon.Coupon, error)

	// PreviewDiscount computes what the coupon would take off amount without running any checks
	PreviewDiscount(ctx context.Context, code string, amount decimal.Decimal) (*coupon.DiscountCalculation, error)

	// RedeemCoupon validates the coupon and, when valid, records the redemption, consumes one global use
	// and charges the campaign budget in one transaction
	RedeemCoupon(ctx context.Context, req RedeemCouponRequest) (*RedeemCouponResponse, error)
}

type couponService struct {
	ServiceParams
	validation CouponValidationService
}

func NewCouponService(params ServiceParams, validation CouponValidationService) CouponService {
	return &couponService{
		ServiceParams: params,
		validation:    validation,
	}
}

func (s *couponService) CreateCoupon(ctx context.Context, c *coupon.Coupon) (*coupon.Coupon, error) {
	now := time.Now().UTC()

	c.Code = coupon.NormalizeCode(c.Code)
	if c.ID == "" {
		c.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_COUPON)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	for _, rule := range c.ValidationRules {
		rule.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_VALIDATION_RULE)
		rule.CouponID = c.ID
	}

	if err := s.CouponRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.Logger.Infow("created coupon",
		"coupon_id", c.ID,
		"coupon_code", c.Code,
		"discount_type", c.DiscountType,
	)
	return c, nil
}

func (s *couponService) PreviewDiscount(ctx context.Context, code string, amount decimal.Decimal) (*coupon.DiscountCalculation, error) {
	if amount.IsNegative() {
		return nil, ierr.NewError("amount cannot be negative").
			WithHint("Amount must be zero or greater").
			Mark(ierr.ErrValidation)
	}

	c, err := s.CouponRepo.GetByCode(ctx, coupon.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	return coupon.CalculateDiscount(c, amount), nil
}

func (s *couponService) RedeemCoupon(ctx context.Context, req RedeemCouponRequest) (*RedeemCouponResponse, error) {
	span, ctx := s.Sentry.StartServiceSpan(ctx, "coupon.redeem", map[string]interface{}{
		"coupon_code": req.Code,
		"user_id":     req.UserID,
	})
	defer sentry.FinishSpan(span)

	result, err := s.validation.ValidateCoupon(ctx, ValidateCouponRequest{
		Code:    req.Code,
		UserID:  req.UserID,
		Context: req.Context,
	})
	if err != nil {
		return &RedeemCouponResponse{Result: result}, err
	}
	if !result.IsValid {
		return &RedeemCouponResponse{Result: result}, nil
	}

	c := result.Coupon
	calc := result.Discount
	red := newRedemption(c, req.UserID, calc, req.Context)

	var lost types.CouponValidationErrorCode
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if lost, err = s.consumeUse(ctx, c, req.UserID); err != nil {
			return err
		}
		if err := s.RedemptionRepo.Create(ctx, red); err != nil {
			return err
		}
		return s.chargeCampaign(ctx, c, calc)
	})
	if err != nil {
		if lost != "" {
			s.Logger.Infow("coupon limit reached during redemption",
				"coupon_code", c.Code,
				"user_id", req.UserID,
				"error_code", lost,
			)
			return &RedeemCouponResponse{Result: &coupon.ValidationResult{
				Coupon: c,
				Errors: []types.CouponValidationErrorCode{lost},
			}}, nil
		}
		s.Sentry.CaptureWithTags(ctx, err, map[string]string{
			"operation":   "redeem_coupon",
			"coupon_code": c.Code,
		})
		return nil, err
	}

	s.Metrics.ObserveRedemption(c.DiscountType, calc.DiscountAmount)
	s.Logger.Infow("coupon redeemed",
		"coupon_code", c.Code,
		"user_id", req.UserID,
		"redemption_id", red.ID,
		"discount_amount", red.DiscountAmount,
	)

	s.publish(ctx, publisher.NewEvent(types.EventCouponRedeemed, req.UserID, red))

	return &RedeemCouponResponse{Result: result, Redemption: red}, nil
}

// newRedemption records a successful use of c by userID
func newRedemption(c *coupon.Coupon, userID string, calc *coupon.DiscountCalculation, vctx coupon.ValidationContext) *redemption.Redemption {
	red := &redemption.Redemption{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REDEMPTION),
		CouponID:       c.ID,
		UserID:         userID,
		Code:           c.Code,
		DiscountType:   c.DiscountType,
		OriginalAmount: calc.OriginalAmount,
		DiscountAmount: calc.DiscountAmount,
		FinalAmount:    calc.FinalAmount,
		Status:         types.RedemptionStatusSuccess,
		RedeemedAt:     time.Now().UTC(),
	}
	if vctx.IPAddress != "" {
		red.IPAddress = lo.ToPtr(vctx.IPAddress)
	}
	if vctx.DeviceFingerprint != "" {
		red.DeviceFingerprint = lo.ToPtr(vctx.DeviceFingerprint)
	}
	return red
}

// consumeUse takes one global use of c and re-checks the user's cap inside the caller's transaction.
// The usage increment holds the coupon's usage row lock until commit, so concurrent redemptions of c queue
// behind it and the per-user count sees every committed redemption. A non-empty code means the coupon
// was exhausted by a concurrent redemption; the returned error then aborts the transaction.
func (p ServiceParams) consumeUse(ctx context.Context, c *coupon.Coupon, userID string) (types.CouponValidationErrorCode, error) {
	if _, err := p.CouponRepo.IncrementUsage(ctx, c.ID); err != nil {
		if ierr.IsInvalidOperation(err) {
			return types.CouponValidationErrorCodeMaxUsesExceeded, err
		}
		return "", err
	}

	if c.MaxUsesPerUser <= 0 {
		return "", nil
	}

	n, err := p.RedemptionRepo.CountSuccessfulByCouponAndUser(ctx, c.ID, userID)
	if err != nil {
		return "", err
	}
	if n >= c.MaxUsesPerUser {
		return types.CouponValidationErrorCodeMaxUserUsesExceeded, ierr.NewErrorf("user %s reached the limit of coupon %s", userID, c.Code).
			WithHint("You have already used this coupon the maximum number of times").
			WithReportableDetails(map[string]any{
				"coupon_id":         c.ID,
				"user_id":           userID,
				"max_uses_per_user": c.MaxUsesPerUser,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return "", nil
}

// chargeCampaign adds the redemption's cost to the coupon's campaign budget
func (p ServiceParams) chargeCampaign(ctx context.Context, c *coupon.Coupon, calc *coupon.DiscountCalculation) error {
	if spend := campaignSpend(calc); c.CampaignID != nil && spend.IsPositive() {
		return p.CouponRepo.AddCampaignSpend(ctx, *c.CampaignID, spend)
	}
	return nil
}

// campaignSpend is what a redemption costs its campaign: the price reduction, or the granted credit
func campaignSpend(calc *coupon.DiscountCalculation) decimal.Decimal {
	if calc.DiscountType == types.DiscountTypeCredits && calc.CreditAmount != nil {
		return *calc.CreditAmount
	}
	return calc.DiscountAmount
}
