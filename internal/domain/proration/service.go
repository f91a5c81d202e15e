// Package proration computes the cost of changing a subscription's tier mid-cycle.
package proration

import (
	"context"

	"github.com/assistly/billing/internal/types"
)

// Service defines the caller-side operations around the calculator.
type Service interface {
	// Preview loads the subscription and calculates the proration without persisting anything.
	Preview(ctx context.Context, subscriptionID string, newTier types.SubscriptionTier, opts Options) (*Calculation, error)

	// ApplyTierChange calculates the proration at the current time, supersedes the subscription's tier
	// and records the event in a single transaction.
	ApplyTierChange(ctx context.Context, req TierChangeRequest) (*Event, error)

	// ListEvents returns the proration history of a subscription.
	ListEvents(ctx context.Context, subscriptionID string) ([]*Event, error)
}
