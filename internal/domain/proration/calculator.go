package proration

import (
	"time"

	"github.com/assistly/billing/internal/domain/coupon"
	"github.com/assistly/billing/internal/domain/pricing"
	"github.com/assistly/billing/internal/domain/subscription"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/types"
	"github.com/shopspring/decimal"
)

// Calculator prorates tier changes against a price table. Day boundaries are local midnights in loc.
// It performs no I/O and is safe for concurrent use.
type Calculator struct {
	prices pricing.Table
	loc    *time.Location
	now    func() time.Time
}

func NewCalculator(prices pricing.Table, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{
		prices: prices,
		loc:    loc,
		now:    time.Now,
	}
}

// WithClock returns a copy of the calculator that reads the current time from now
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	cp := *c
	cp.now = now
	return &cp
}

// Calculate computes the cost of moving sub to newTier at opts.ReferenceTime.
//
// Unused credit and the new tier's cost are both scaled by daysRemaining/daysInCycle. A coupon reduces
// the prorated new-tier cost before unused credit is subtracted. The net charge is floored at zero;
// the signed value is kept in RawNetChargeUSD.
func (c *Calculator) Calculate(
	sub *subscription.Subscription,
	newTier types.SubscriptionTier,
	opts Options,
) (*Calculation, error) {
	if sub == nil {
		return nil, ierr.NewError("subscription is required").
			WithHint("Subscription is required to calculate proration").
			Mark(ierr.ErrValidation)
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := newTier.Validate(); err != nil {
		return nil, err
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	refTime := opts.ReferenceTime
	if refTime.IsZero() {
		refTime = c.now()
	}

	daysInCycle := c.daysBetween(sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	if daysInCycle <= 0 {
		return nil, ierr.NewError("billing period spans less than one day").
			WithHint("Subscription billing period is too short to prorate").
			WithReportableDetails(map[string]any{
				"subscription_id":      sub.ID,
				"current_period_start": sub.CurrentPeriodStart,
				"current_period_end":   sub.CurrentPeriodEnd,
			}).
			Mark(ierr.ErrValidation)
	}

	daysRemaining := c.daysBetween(refTime, sub.CurrentPeriodEnd)
	if daysRemaining < 0 {
		daysRemaining = 0
	}
	if daysRemaining > daysInCycle {
		daysRemaining = daysInCycle
	}

	oldPrice, err := c.prices.PriceFor(sub.Tier, sub.BillingCycle)
	if err != nil {
		return nil, err
	}
	if opts.CurrentTierEffectivePrice != nil {
		oldPrice = *opts.CurrentTierEffectivePrice
	}

	newPrice, err := c.prices.PriceFor(newTier, sub.BillingCycle)
	if err != nil {
		return nil, err
	}

	ratio := decimal.NewFromInt(int64(daysRemaining)).Div(decimal.NewFromInt(int64(daysInCycle)))
	unusedCredit := oldPrice.Mul(ratio)
	proratedCost := newPrice.Mul(ratio)

	discount := decimal.Zero
	var couponCode string
	if opts.NewTierCoupon != nil {
		couponCode = opts.NewTierCoupon.Code
		discount = coupon.DiscountAmount(opts.NewTierCoupon.DiscountType, opts.NewTierCoupon.DiscountValue, proratedCost)
	}

	rawNet := proratedCost.Sub(unusedCredit).Sub(discount)

	return &Calculation{
		SubscriptionID:         sub.ID,
		FromTier:               sub.Tier,
		ToTier:                 newTier,
		BillingCycle:           sub.BillingCycle,
		ReferenceTime:          refTime,
		DaysRemaining:          daysRemaining,
		DaysInCycle:            daysInCycle,
		OldTierPriceUSD:        types.RoundUSD(oldPrice),
		NewTierPriceUSD:        types.RoundUSD(newPrice),
		UnusedCreditValueUSD:   types.RoundUSD(unusedCredit),
		NewTierProratedCostUSD: types.RoundUSD(proratedCost),
		CouponCode:             couponCode,
		CouponDiscountAmount:   types.RoundUSD(discount),
		NetChargeUSD:           types.RoundUSD(types.FloorAtZero(rawNet)),
		RawNetChargeUSD:        types.RoundUSD(rawNet),
	}, nil
}

func validateOptions(opts Options) error {
	if opts.CurrentTierEffectivePrice != nil && opts.CurrentTierEffectivePrice.IsNegative() {
		return ierr.NewError("effective price cannot be negative").
			WithHint("Current tier effective price must be zero or greater").
			Mark(ierr.ErrValidation)
	}

	if opts.NewTierCoupon == nil {
		return nil
	}
	if !opts.NewTierCoupon.DiscountType.ReducesPrice() {
		return ierr.NewError("coupon discount type cannot be prorated").
			WithHint("Only percentage and fixed_amount coupons can be applied to a tier change").
			WithReportableDetails(map[string]any{
				"discount_type": opts.NewTierCoupon.DiscountType,
			}).
			Mark(ierr.ErrValidation)
	}
	if opts.NewTierCoupon.DiscountValue.IsNegative() {
		return ierr.NewError("coupon discount value cannot be negative").
			WithHint("Coupon discount value must be zero or greater").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// daysBetween counts whole calendar days from the local date of start to the local date of end.
// Both instants are truncated to local midnight first, so DST shifts never add or drop a day.
func (c *Calculator) daysBetween(start, end time.Time) int {
	s := start.In(c.loc)
	e := end.In(c.loc)

	// rebuild both dates in UTC where every day is exactly 24h long
	startDate := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	endDate := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)

	return int(endDate.Sub(startDate).Hours() / 24)
}
