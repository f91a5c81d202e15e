package subscription

import (
	"time"

	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/types"
	"github.com/shopspring/decimal"
)

// Subscription is the snapshot of a user's subscription at the moment a calculation is requested.
// Tier changes supersede the period rather than mutating history; each change is recorded as a proration event.
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// UserID owns the subscription
	UserID string `db:"user_id" json:"user_id"`

	Tier         types.SubscriptionTier `db:"tier" json:"tier"`
	BillingCycle types.BillingCycle     `db:"billing_cycle" json:"billing_cycle"`

	// BasePriceUSD is the list price the subscription was created or last changed at, per billing cycle
	BasePriceUSD decimal.Decimal `db:"base_price_usd" json:"base_price_usd"`

	// CurrentPeriodStart and CurrentPeriodEnd form a half-open interval; the end is exclusive for day counting
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   time.Time `db:"current_period_end" json:"current_period_end"`

	Status types.SubscriptionStatus `db:"status" json:"status"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Validate checks the snapshot invariants
func (s *Subscription) Validate() error {
	if err := s.Tier.Validate(); err != nil {
		return err
	}
	if err := s.BillingCycle.Validate(); err != nil {
		return err
	}
	if s.CurrentPeriodStart.IsZero() || s.CurrentPeriodEnd.IsZero() {
		return ierr.NewError("billing period start and end are required").
			WithHint("Subscription has no current billing period").
			Mark(ierr.ErrValidation)
	}
	if !s.CurrentPeriodStart.Before(s.CurrentPeriodEnd) {
		return ierr.NewError("billing period start must be before its end").
			WithHint("Subscription billing period is invalid").
			WithReportableDetails(map[string]any{
				"current_period_start": s.CurrentPeriodStart,
				"current_period_end":   s.CurrentPeriodEnd,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
