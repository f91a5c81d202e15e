package proration

import (
	"time"

	"github.com/assistly/billing/internal/domain/subscription"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CouponTerms is a coupon applied to the new tier's prorated cost.
// Only percentage and fixed_amount discounts can reduce a proration.
type CouponTerms struct {
	Code          string             `json:"code"`
	DiscountType  types.DiscountType `json:"discount_type"`
	DiscountValue decimal.Decimal    `json:"discount_value"`
}

// Options tunes a single proration calculation
type Options struct {
	// CurrentTierEffectivePrice replaces the current tier's list price when computing unused credit,
	// for users paying less than list because of an active promotion. It is a price per billing cycle.
	CurrentTierEffectivePrice *decimal.Decimal

	// NewTierCoupon is applied after the new tier's cost is prorated and before unused credit is subtracted
	NewTierCoupon *CouponTerms

	// ReferenceTime is the instant the change takes effect. Zero means now.
	ReferenceTime time.Time
}

// Calculation is the financial delta of moving a subscription to another tier mid-cycle.
// All USD amounts are rounded to cents.
type Calculation struct {
	SubscriptionID string                 `json:"subscription_id"`
	FromTier       types.SubscriptionTier `json:"from_tier"`
	ToTier         types.SubscriptionTier `json:"to_tier"`
	BillingCycle   types.BillingCycle     `json:"billing_cycle"`
	ReferenceTime  time.Time              `json:"reference_time"`

	DaysRemaining int `json:"days_remaining"`
	DaysInCycle   int `json:"days_in_cycle"`

	OldTierPriceUSD decimal.Decimal `json:"old_tier_price_usd"`
	NewTierPriceUSD decimal.Decimal `json:"new_tier_price_usd"`

	UnusedCreditValueUSD   decimal.Decimal `json:"unused_credit_value_usd"`
	NewTierProratedCostUSD decimal.Decimal `json:"new_tier_prorated_cost_usd"`
	CouponCode             string          `json:"coupon_code,omitempty"`
	CouponDiscountAmount   decimal.Decimal `json:"coupon_discount_amount"`

	// NetChargeUSD is what the caller collects now. It is never negative.
	NetChargeUSD decimal.Decimal `json:"net_charge_usd"`
	// RawNetChargeUSD is the signed delta before flooring; negative means credit is owed.
	// Issuing that credit is the caller's decision.
	RawNetChargeUSD decimal.Decimal `json:"raw_net_charge_usd"`
}

// IsCreditOwed reports whether the unfloored delta favours the customer
func (c *Calculation) IsCreditOwed() bool {
	return c.RawNetChargeUSD.IsNegative()
}

// Event is the persisted record of an applied tier change
type Event struct {
	ID             string                 `db:"id" json:"id"`
	SubscriptionID string                 `db:"subscription_id" json:"subscription_id"`
	UserID         string                 `db:"user_id" json:"user_id"`
	FromTier       types.SubscriptionTier `db:"from_tier" json:"from_tier"`
	ToTier         types.SubscriptionTier `db:"to_tier" json:"to_tier"`
	BillingCycle   types.BillingCycle     `db:"billing_cycle" json:"billing_cycle"`

	DaysRemaining int `db:"days_remaining" json:"days_remaining"`
	DaysInCycle   int `db:"days_in_cycle" json:"days_in_cycle"`

	UnusedCreditValueUSD   decimal.Decimal `db:"unused_credit_value_usd" json:"unused_credit_value_usd"`
	NewTierProratedCostUSD decimal.Decimal `db:"new_tier_prorated_cost_usd" json:"new_tier_prorated_cost_usd"`
	CouponCode             *string         `db:"coupon_code" json:"coupon_code,omitempty"`
	CouponDiscountAmount   decimal.Decimal `db:"coupon_discount_amount" json:"coupon_discount_amount"`
	NetChargeUSD           decimal.Decimal `db:"net_charge_usd" json:"net_charge_usd"`
	RawNetChargeUSD        decimal.Decimal `db:"raw_net_charge_usd" json:"raw_net_charge_usd"`

	EffectiveAt time.Time `db:"effective_at" json:"effective_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// NewEvent builds the event recording calc against sub
func NewEvent(sub *subscription.Subscription, calc *Calculation) *Event {
	var code *string
	if calc.CouponCode != "" {
		code = lo.ToPtr(calc.CouponCode)
	}

	return &Event{
		ID:                     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRORATION_EVENT),
		SubscriptionID:         sub.ID,
		UserID:                 sub.UserID,
		FromTier:               calc.FromTier,
		ToTier:                 calc.ToTier,
		BillingCycle:           calc.BillingCycle,
		DaysRemaining:          calc.DaysRemaining,
		DaysInCycle:            calc.DaysInCycle,
		UnusedCreditValueUSD:   calc.UnusedCreditValueUSD,
		NewTierProratedCostUSD: calc.NewTierProratedCostUSD,
		CouponCode:             code,
		CouponDiscountAmount:   calc.CouponDiscountAmount,
		NetChargeUSD:           calc.NetChargeUSD,
		RawNetChargeUSD:        calc.RawNetChargeUSD,
		EffectiveAt:            calc.ReferenceTime,
		CreatedAt:              time.Now().UTC(),
	}
}

// TierChangeRequest asks to move a subscription to NewTier and record the proration.
// A change is always priced at the current time against the subscription's stored base price;
// the Options overrides exist for previews only.
type TierChangeRequest struct {
	SubscriptionID string
	NewTier        types.SubscriptionTier
}
