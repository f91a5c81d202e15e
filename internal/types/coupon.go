package types

import (
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/samber/lo"
)

// CouponType classifies where a coupon comes from. It does not change how the discount is computed.
type CouponType string

const (
	CouponTypeStandard  CouponType = "standard"
	CouponTypeCampaign  CouponType = "campaign"
	CouponTypeReferral  CouponType = "referral"
	CouponTypePartner   CouponType = "partner"
	CouponTypeMigration CouponType = "migration"
)

func (c CouponType) Validate() error {
	allowed := []CouponType{
		CouponTypeStandard,
		CouponTypeCampaign,
		CouponTypeReferral,
		CouponTypePartner,
		CouponTypeMigration,
	}
	if !lo.Contains(allowed, c) {
		return ierr.NewError("invalid coupon type").
			WithHint("Please provide a valid coupon type").
			WithReportableDetails(map[string]any{
				"type":    c,
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DiscountType determines how a coupon's discount value is interpreted
type DiscountType string

const (
	// DiscountTypePercentage takes discount value percent off the amount
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixedAmount takes discount value USD off the amount, capped at the amount
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
	// DiscountTypeCredits grants discount value usage credits and leaves the price untouched
	DiscountTypeCredits DiscountType = "credits"
	// DiscountTypeMonthsFree extends the subscription by discount value months and leaves the price untouched
	DiscountTypeMonthsFree DiscountType = "months_free"
)

func (d DiscountType) String() string {
	return string(d)
}

func (d DiscountType) Validate() error {
	allowed := []DiscountType{
		DiscountTypePercentage,
		DiscountTypeFixedAmount,
		DiscountTypeCredits,
		DiscountTypeMonthsFree,
	}
	if !lo.Contains(allowed, d) {
		return ierr.NewError("invalid discount type").
			WithHint("Discount type must be one of percentage, fixed_amount, credits or months_free").
			WithReportableDetails(map[string]any{
				"discount_type": d,
				"allowed":       allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ReducesPrice reports whether the discount type lowers the amount charged
func (d DiscountType) ReducesPrice() bool {
	return d == DiscountTypePercentage || d == DiscountTypeFixedAmount
}

// ValidationRuleType identifies a custom predicate attached to a coupon
type ValidationRuleType string

const (
	ValidationRuleFirstTimeUser        ValidationRuleType = "first_time_user"
	ValidationRuleEmailDomain          ValidationRuleType = "email_domain"
	ValidationRuleMinCreditBalance     ValidationRuleType = "min_credit_balance"
	ValidationRuleExcludeRefunded      ValidationRuleType = "exclude_refunded"
	ValidationRuleRequirePaymentMethod ValidationRuleType = "require_payment_method"
)

// ValidationRuleTypes lists the rule types that have a built-in evaluator
var ValidationRuleTypes = []ValidationRuleType{
	ValidationRuleFirstTimeUser,
	ValidationRuleEmailDomain,
	ValidationRuleMinCreditBalance,
	ValidationRuleExcludeRefunded,
	ValidationRuleRequirePaymentMethod,
}

func (r ValidationRuleType) Validate() error {
	if !lo.Contains(ValidationRuleTypes, r) {
		return ierr.NewError("invalid validation rule type").
			WithHint("Please provide a supported validation rule type").
			WithReportableDetails(map[string]any{
				"rule_type": r,
				"allowed":   ValidationRuleTypes,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// RedemptionStatus is the outcome recorded for a coupon redemption
type RedemptionStatus string

const (
	RedemptionStatusSuccess  RedemptionStatus = "success"
	RedemptionStatusReversed RedemptionStatus = "reversed"
)
