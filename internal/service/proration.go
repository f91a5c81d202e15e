package service

import (
	"context"

	"github.com/assistly/billing/internal/domain/proration"
	"github.com/assistly/billing/internal/domain/subscription"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/publisher"
	"github.com/assistly/billing/internal/sentry"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
)

type prorationService struct {
	ServiceParams
}

// NewProrationService creates the service that previews and applies tier changes
func NewProrationService(params ServiceParams) proration.Service {
	return &prorationService{
		ServiceParams: params,
	}
}

// tierChangedPayload is published on subscription.tier_changed
type tierChangedPayload struct {
	Event     *proration.Event `json:"event"`
	Direction string           `json:"direction"`
}

func (s *prorationService) Preview(
	ctx context.Context,
	subscriptionID string,
	newTier types.SubscriptionTier,
	opts proration.Options,
) (*proration.Calculation, error) {
	span, ctx := s.Sentry.StartServiceSpan(ctx, "proration.preview", map[string]interface{}{
		"subscription_id": subscriptionID,
		"new_tier":        newTier,
	})
	defer sentry.FinishSpan(span)

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	calc, err := s.Calculator.Calculate(sub, newTier, opts)
	if err != nil {
		return nil, err
	}

	s.Logger.Debugw("previewed proration",
		"subscription_id", subscriptionID,
		"from_tier", calc.FromTier,
		"to_tier", calc.ToTier,
		"net_charge_usd", calc.NetChargeUSD,
	)
	return calc, nil
}

func (s *prorationService) ApplyTierChange(ctx context.Context, req proration.TierChangeRequest) (*proration.Event, error) {
	span, ctx := s.Sentry.StartServiceSpan(ctx, "proration.apply_tier_change", map[string]interface{}{
		"subscription_id": req.SubscriptionID,
		"new_tier":        req.NewTier,
	})
	defer sentry.FinishSpan(span)

	event, calc, err := s.changeTier(ctx, tierChange{
		subscriptionID: req.SubscriptionID,
		newTier:        req.NewTier,
	})
	if err != nil {
		if ierr.IsInfrastructure(err) {
			s.Sentry.CaptureWithTags(ctx, err, map[string]string{
				"operation":       "apply_tier_change",
				"subscription_id": req.SubscriptionID,
			})
		}
		return nil, err
	}

	s.tierChanged(ctx, event, calc)
	return event, nil
}

func (s *prorationService) ListEvents(ctx context.Context, subscriptionID string) ([]*proration.Event, error) {
	if _, err := s.SubRepo.Get(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return s.ProrationRepo.ListBySubscription(ctx, subscriptionID)
}

// tierChange is one tier change applied in its own transaction
type tierChange struct {
	subscriptionID string
	newTier        types.SubscriptionTier
	coupon         *proration.CouponTerms
	// inTx runs after the proration is calculated and before the subscription or event is written
	inTx func(ctx context.Context, sub *subscription.Subscription, calc *proration.Calculation) error
}

// changeTier locks the subscription row, prorates at the calculator's clock against the stored base price,
// supersedes the subscription and records the event.
func (p ServiceParams) changeTier(ctx context.Context, change tierChange) (*proration.Event, *proration.Calculation, error) {
	var (
		event *proration.Event
		calc  *proration.Calculation
	)

	err := p.DB.WithTx(ctx, func(ctx context.Context) error {
		sub, err := p.SubRepo.GetForUpdate(ctx, change.subscriptionID)
		if err != nil {
			return err
		}

		if !lo.Contains(changeableStatuses, sub.Status) {
			return ierr.NewErrorf("subscription %s is %s", sub.ID, sub.Status).
				WithHint("Only active or trialing subscriptions can change tier").
				WithReportableDetails(map[string]any{
					"subscription_id": sub.ID,
					"status":          sub.Status,
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		if sub.Tier == change.newTier {
			return ierr.NewErrorf("subscription %s is already on tier %s", sub.ID, sub.Tier).
				WithHint("The subscription is already on the requested tier").
				Mark(ierr.ErrInvalidOperation)
		}

		calc, err = p.Calculator.Calculate(sub, change.newTier, proration.Options{
			CurrentTierEffectivePrice: lo.ToPtr(sub.BasePriceUSD),
			NewTierCoupon:             change.coupon,
		})
		if err != nil {
			return err
		}

		if change.inTx != nil {
			if err := change.inTx(ctx, sub, calc); err != nil {
				return err
			}
		}

		event = proration.NewEvent(sub, calc)

		if err := p.SubRepo.Update(ctx, supersede(sub, calc)); err != nil {
			return err
		}

		return p.ProrationRepo.Create(ctx, event)
	})
	if err != nil {
		return nil, nil, err
	}
	return event, calc, nil
}

// tierChanged reports a committed tier change
func (p ServiceParams) tierChanged(ctx context.Context, event *proration.Event, calc *proration.Calculation) {
	direction := tierChangeDirection(calc)
	p.Metrics.ObserveTierChange(direction, calc.NetChargeUSD)

	p.Logger.Infow("applied tier change",
		"subscription_id", event.SubscriptionID,
		"user_id", event.UserID,
		"from_tier", event.FromTier,
		"to_tier", event.ToTier,
		"net_charge_usd", event.NetChargeUSD,
		"raw_net_charge_usd", event.RawNetChargeUSD,
		"coupon_code", lo.FromPtr(event.CouponCode),
	)

	p.publish(ctx, publisher.NewEvent(types.EventSubscriptionTierChanged, event.SubscriptionID, &tierChangedPayload{
		Event:     event,
		Direction: direction,
	}))
}

// publish sends the event after the transaction committed. A publishing failure is logged, never returned:
// the change is already durable.
func (p ServiceParams) publish(ctx context.Context, event *publisher.Event) {
	if err := p.EventPublisher.Publish(ctx, event); err != nil {
		p.Logger.Errorw("failed to publish event",
			"event_type", event.Type,
			"key", event.Key,
			"error", err,
		)
	}
}

var changeableStatuses = []types.SubscriptionStatus{
	types.SubscriptionStatusActive,
	types.SubscriptionStatusTrialing,
}

// supersede returns the subscription as it stands after the change. The billing period is kept.
func supersede(sub *subscription.Subscription, calc *proration.Calculation) *subscription.Subscription {
	updated := *sub
	updated.Tier = calc.ToTier
	updated.BasePriceUSD = calc.NewTierPriceUSD
	updated.UpdatedAt = calc.ReferenceTime.UTC()
	return &updated
}

func tierChangeDirection(calc *proration.Calculation) string {
	switch calc.NewTierPriceUSD.Cmp(calc.OldTierPriceUSD) {
	case 1:
		return "upgrade"
	case -1:
		return "downgrade"
	default:
		return "lateral"
	}
}
