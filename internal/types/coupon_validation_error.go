package types

import (
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/samber/lo"
)

// CouponValidationErrorCode is the machine readable reason a coupon was rejected
type CouponValidationErrorCode string

const (
	CouponValidationErrorCodeNotFound               CouponValidationErrorCode = "COUPON_NOT_FOUND"
	CouponValidationErrorCodeInactive               CouponValidationErrorCode = "COUPON_INACTIVE"
	CouponValidationErrorCodeExpired                CouponValidationErrorCode = "COUPON_EXPIRED"
	CouponValidationErrorCodeTierNotEligible        CouponValidationErrorCode = "TIER_NOT_ELIGIBLE"
	CouponValidationErrorCodeMaxUsesExceeded        CouponValidationErrorCode = "MAX_USES_EXCEEDED"
	CouponValidationErrorCodeMaxUserUsesExceeded    CouponValidationErrorCode = "MAX_USER_USES_EXCEEDED"
	CouponValidationErrorCodeCampaignBudgetExceeded CouponValidationErrorCode = "CAMPAIGN_BUDGET_EXCEEDED"
	CouponValidationErrorCodeMinPurchaseNotMet      CouponValidationErrorCode = "MIN_PURCHASE_NOT_MET"
	CouponValidationErrorCodeCustomRuleFailed       CouponValidationErrorCode = "CUSTOM_RULE_FAILED"
	CouponValidationErrorCodeFraudDetected          CouponValidationErrorCode = "FRAUD_DETECTED"
	CouponValidationErrorCodeVelocityLimitExceeded  CouponValidationErrorCode = "VELOCITY_LIMIT_EXCEEDED"

	// CouponValidationErrorCodeValidationError is reported when the checks could not run at all,
	// e.g. the data store was unreachable while loading the snapshot
	CouponValidationErrorCodeValidationError CouponValidationErrorCode = "VALIDATION_ERROR"
)

var couponValidationErrorCodes = []CouponValidationErrorCode{
	CouponValidationErrorCodeNotFound,
	CouponValidationErrorCodeInactive,
	CouponValidationErrorCodeExpired,
	CouponValidationErrorCodeTierNotEligible,
	CouponValidationErrorCodeMaxUsesExceeded,
	CouponValidationErrorCodeMaxUserUsesExceeded,
	CouponValidationErrorCodeCampaignBudgetExceeded,
	CouponValidationErrorCodeMinPurchaseNotMet,
	CouponValidationErrorCodeCustomRuleFailed,
	CouponValidationErrorCodeFraudDetected,
	CouponValidationErrorCodeVelocityLimitExceeded,
	CouponValidationErrorCodeValidationError,
}

func (c CouponValidationErrorCode) String() string {
	return string(c)
}

func (c CouponValidationErrorCode) Validate() error {
	if !lo.Contains(couponValidationErrorCodes, c) {
		return ierr.NewError("invalid coupon validation error code").
			WithHint("Please provide a valid coupon validation error code").
			WithReportableDetails(map[string]any{
				"allowed": couponValidationErrorCodes,
				"code":    c,
			}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

// IsUserError returns true if the code should surface as a 4xx
func (c CouponValidationErrorCode) IsUserError() bool {
	return c != CouponValidationErrorCodeValidationError
}

// IsFraudError returns true for codes raised by the fraud checks
func (c CouponValidationErrorCode) IsFraudError() bool {
	return c == CouponValidationErrorCodeFraudDetected || c == CouponValidationErrorCodeVelocityLimitExceeded
}

// Message returns a short human readable explanation for the code
func (c CouponValidationErrorCode) Message() string {
	switch c {
	case CouponValidationErrorCodeNotFound:
		return "Coupon not found"
	case CouponValidationErrorCodeInactive:
		return "Coupon is no longer active"
	case CouponValidationErrorCodeExpired:
		return "Coupon has expired or is not yet valid"
	case CouponValidationErrorCodeTierNotEligible:
		return "This coupon doesn't apply to your plan"
	case CouponValidationErrorCodeMaxUsesExceeded:
		return "Coupon has reached its usage limit"
	case CouponValidationErrorCodeMaxUserUsesExceeded:
		return "You have already used this coupon the maximum number of times"
	case CouponValidationErrorCodeCampaignBudgetExceeded:
		return "This promotion has ended"
	case CouponValidationErrorCodeMinPurchaseNotMet:
		return "Order total is below the coupon's minimum purchase amount"
	case CouponValidationErrorCodeCustomRuleFailed:
		return "You are not eligible for this coupon"
	case CouponValidationErrorCodeFraudDetected:
		return "Coupon cannot be redeemed on this account"
	case CouponValidationErrorCodeVelocityLimitExceeded:
		return "Too many coupon attempts, please try again later"
	default:
		return "Coupon could not be validated"
	}
}
