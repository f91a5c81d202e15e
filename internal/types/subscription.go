package types

import (
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionTier is the product tier a subscription is on
type SubscriptionTier string

const (
	SubscriptionTierFree          SubscriptionTier = "free"
	SubscriptionTierPro           SubscriptionTier = "pro"
	SubscriptionTierProMax        SubscriptionTier = "pro_max"
	SubscriptionTierEnterprisePro SubscriptionTier = "enterprise_pro"
	SubscriptionTierEnterpriseMax SubscriptionTier = "enterprise_max"
	// SubscriptionTierPerpetual is a one-time license and carries no recurring price
	SubscriptionTierPerpetual SubscriptionTier = "perpetual"
)

// SubscriptionTiers lists every known tier in ascending list-price order
var SubscriptionTiers = []SubscriptionTier{
	SubscriptionTierFree,
	SubscriptionTierPro,
	SubscriptionTierProMax,
	SubscriptionTierEnterprisePro,
	SubscriptionTierEnterpriseMax,
	SubscriptionTierPerpetual,
}

func (t SubscriptionTier) String() string {
	return string(t)
}

func (t SubscriptionTier) Validate() error {
	if !lo.Contains(SubscriptionTiers, t) {
		return ierr.NewError("invalid subscription tier").
			WithHint("Please provide a valid subscription tier").
			WithReportableDetails(map[string]any{
				"tier":    t,
				"allowed": SubscriptionTiers,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BillingCycle is how often a subscription renews
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleAnnual  BillingCycle = "annual"
)

func (b BillingCycle) String() string {
	return string(b)
}

func (b BillingCycle) Validate() error {
	allowed := []BillingCycle{
		BillingCycleMonthly,
		BillingCycleAnnual,
	}
	if !lo.Contains(allowed, b) {
		return ierr.NewError("invalid billing cycle").
			WithHint("Billing cycle must be monthly or annual").
			WithReportableDetails(map[string]any{
				"billing_cycle": b,
				"allowed":       allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionStatus is the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusActive,
		SubscriptionStatusTrialing,
		SubscriptionStatusPastDue,
		SubscriptionStatusCancelled,
		SubscriptionStatusExpired,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
