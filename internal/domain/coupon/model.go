package coupon

import (
	"time"

	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/types"
	"github.com/assistly/billing/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Coupon is a fully hydrated coupon record. Campaign, UsageLimits and ValidationRules are loaded
// by the repository so validation never reaches back into storage.
type Coupon struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	Type          types.CouponType   `db:"type" json:"type"`
	DiscountType  types.DiscountType `db:"discount_type" json:"discount_type"`
	DiscountValue decimal.Decimal    `db:"discount_value" json:"discount_value"`

	// MaxUses caps redemptions across all users. Nil means unlimited.
	MaxUses *int `db:"max_uses" json:"max_uses,omitempty"`
	// MaxUsesPerUser caps redemptions by a single user. Zero or less means unlimited.
	MaxUsesPerUser int `db:"max_uses_per_user" json:"max_uses_per_user"`

	MinPurchaseAmount *decimal.Decimal `db:"min_purchase_amount" json:"min_purchase_amount,omitempty"`

	// TierEligibility lists the tiers allowed to redeem. Empty means every tier.
	TierEligibility []types.SubscriptionTier `db:"-" json:"tier_eligibility"`

	ValidFrom  time.Time `db:"valid_from" json:"valid_from"`
	ValidUntil time.Time `db:"valid_until" json:"valid_until"`
	IsActive   bool      `db:"is_active" json:"is_active"`

	CampaignID *string `db:"campaign_id" json:"campaign_id,omitempty"`

	Campaign        *Campaign         `db:"-" json:"campaign,omitempty"`
	UsageLimits     *UsageLimits      `db:"-" json:"usage_limits,omitempty"`
	ValidationRules []*ValidationRule `db:"-" json:"validation_rules,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Campaign groups coupons under a shared spend budget
type Campaign struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`

	// BudgetLimitUSD is nil for campaigns without a budget
	BudgetLimitUSD *decimal.Decimal `db:"budget_limit_usd" json:"budget_limit_usd,omitempty"`
	TotalSpentUSD  decimal.Decimal  `db:"total_spent_usd" json:"total_spent_usd"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasBudgetRemaining reports whether the campaign may fund another redemption
func (c *Campaign) HasBudgetRemaining() bool {
	if c.BudgetLimitUSD == nil {
		return true
	}
	return c.TotalSpentUSD.LessThan(*c.BudgetLimitUSD)
}

// UsageLimits is the global usage counter of a coupon. The row is created lazily on first redemption.
type UsageLimits struct {
	CouponID  string    `db:"coupon_id" json:"coupon_id"`
	TotalUses int       `db:"total_uses" json:"total_uses"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ValidationRule is a typed custom predicate attached to a coupon
type ValidationRule struct {
	ID       string                   `db:"id" json:"id"`
	CouponID string                   `db:"coupon_id" json:"coupon_id"`
	RuleType types.ValidationRuleType `db:"rule_type" json:"rule_type"`
	Params   RuleParams               `db:"-" json:"params,omitempty"`
	IsActive bool                     `db:"is_active" json:"is_active"`
}

// RuleParams holds rule configuration as decoded from JSON
type RuleParams map[string]any

// Strings returns the string values stored under key
func (p RuleParams) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		return lo.FilterMap(v, func(item any, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok
		})
	case string:
		return []string{v}
	default:
		return nil
	}
}

// Int returns the integer stored under key, or fallback when it is missing or not a number
func (p RuleParams) Int(key string, fallback int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// TotalUses returns the global redemption count, treating a missing counter as zero
func (c *Coupon) TotalUses() int {
	if c.UsageLimits == nil {
		return 0
	}
	return c.UsageLimits.TotalUses
}

// ActiveRules returns the rules that take part in validation
func (c *Coupon) ActiveRules() []*ValidationRule {
	return lo.Filter(c.ValidationRules, func(r *ValidationRule, _ int) bool {
		return r != nil && r.IsActive
	})
}

// IsEligibleTier reports whether tier may redeem the coupon
func (c *Coupon) IsEligibleTier(tier types.SubscriptionTier) bool {
	return len(c.TierEligibility) == 0 || lo.Contains(c.TierEligibility, tier)
}

// IsWithinValidity reports whether now falls inside [ValidFrom, ValidUntil]. A zero bound is open.
func (c *Coupon) IsWithinValidity(now time.Time) bool {
	if !c.ValidFrom.IsZero() && now.Before(c.ValidFrom) {
		return false
	}
	if !c.ValidUntil.IsZero() && now.After(c.ValidUntil) {
		return false
	}
	return true
}

func (c *Coupon) Validate() error {
	if !validator.IsCouponCode(c.Code) {
		return ierr.NewError("invalid coupon code").
			WithHint("Coupon codes are 4 to 50 uppercase letters or digits").
			WithReportableDetails(map[string]any{"code": c.Code}).
			Mark(ierr.ErrValidation)
	}
	if err := c.Type.Validate(); err != nil {
		return err
	}
	if err := c.DiscountType.Validate(); err != nil {
		return err
	}
	if c.DiscountValue.IsNegative() {
		return ierr.NewError("discount value cannot be negative").
			WithHint("Discount value must be zero or greater").
			Mark(ierr.ErrValidation)
	}
	if c.DiscountType == types.DiscountTypeMonthsFree && !c.DiscountValue.Equal(c.DiscountValue.Truncate(0)) {
		return ierr.NewError("months free must be a whole number").
			WithHint("Months free discounts grant whole months").
			WithReportableDetails(map[string]any{"discount_value": c.DiscountValue}).
			Mark(ierr.ErrValidation)
	}
	if c.DiscountType == types.DiscountTypePercentage && c.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return ierr.NewError("percentage discount exceeds 100").
			WithHint("Percentage discounts must be between 0 and 100").
			Mark(ierr.ErrValidation)
	}
	if !c.ValidFrom.IsZero() && !c.ValidUntil.IsZero() && c.ValidFrom.After(c.ValidUntil) {
		return ierr.NewError("valid_from is after valid_until").
			WithHint("Coupon validity window is invalid").
			WithReportableDetails(map[string]any{
				"valid_from":  c.ValidFrom,
				"valid_until": c.ValidUntil,
			}).
			Mark(ierr.ErrValidation)
	}
	for _, tier := range c.TierEligibility {
		if err := tier.Validate(); err != nil {
			return err
		}
	}
	for _, rule := range c.ActiveRules() {
		if err := rule.RuleType.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DiscountCalculation is the effect of a coupon on an amount. Exactly one of Percentage, FixedAmount,
// CreditAmount and BonusMonths is set, depending on DiscountType.
type DiscountCalculation struct {
	CouponType     types.CouponType   `json:"coupon_type"`
	DiscountType   types.DiscountType `json:"discount_type"`
	OriginalAmount decimal.Decimal    `json:"original_amount"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	FinalAmount    decimal.Decimal    `json:"final_amount"`

	Percentage   *decimal.Decimal `json:"percentage,omitempty"`
	FixedAmount  *decimal.Decimal `json:"fixed_amount,omitempty"`
	CreditAmount *decimal.Decimal `json:"credit_amount,omitempty"`
	BonusMonths  *int             `json:"bonus_months,omitempty"`
}
