package dto

import (
	"time"

	"github.com/assistly/billing/internal/domain/proration"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/types"
	"github.com/assistly/billing/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ProrationPreviewRequest asks what moving a subscription to NewTier would cost
type ProrationPreviewRequest struct {
	NewTier types.SubscriptionTier `json:"new_tier" validate:"required"`
	// CurrentTierEffectivePrice overrides the current tier's list price for users on a promotion
	CurrentTierEffectivePrice *decimal.Decimal `json:"current_tier_effective_price,omitempty"`
	// ReferenceTime defaults to now
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

func (r *ProrationPreviewRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.NewTier.Validate(); err != nil {
		return err
	}
	if r.CurrentTierEffectivePrice != nil && r.CurrentTierEffectivePrice.IsNegative() {
		return ierr.NewError("current_tier_effective_price cannot be negative").
			WithHint("Current tier effective price must be zero or greater").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *ProrationPreviewRequest) ToOptions() proration.Options {
	return proration.Options{
		CurrentTierEffectivePrice: r.CurrentTierEffectivePrice,
		ReferenceTime:             lo.FromPtr(r.ReferenceTime),
	}
}

// TierChangeRequest moves a subscription to NewTier and records the proration.
// It carries no pricing overrides: the change is priced by the server.
type TierChangeRequest struct {
	NewTier types.SubscriptionTier `json:"new_tier" validate:"required"`
}

func (r *TierChangeRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.NewTier.Validate()
}

func (r *TierChangeRequest) ToTierChangeRequest(subscriptionID string) proration.TierChangeRequest {
	return proration.TierChangeRequest{
		SubscriptionID: subscriptionID,
		NewTier:        r.NewTier,
	}
}

// ListProrationEventsResponse lists a subscription's tier changes, newest first
type ListProrationEventsResponse struct {
	Items []*proration.Event `json:"items"`
	Total int                `json:"total"`
}

func NewListProrationEventsResponse(events []*proration.Event) *ListProrationEventsResponse {
	if events == nil {
		events = []*proration.Event{}
	}
	return &ListProrationEventsResponse{
		Items: events,
		Total: len(events),
	}
}
