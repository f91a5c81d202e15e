package postgres

import (
	"context"

	"github.com/assistly/billing/internal/domain/proration"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/postgres"
)

type prorationEventRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewProrationEventRepository(db *postgres.DB, logger *logger.Logger) proration.Repository {
	return &prorationEventRepository{db: db, logger: logger}
}

func (r *prorationEventRepository) Create(ctx context.Context, event *proration.Event) error {
	span := StartRepositorySpan(ctx, "proration_event", "create", map[string]interface{}{
		"subscription_id": event.SubscriptionID,
	})
	defer FinishSpan(span)

	query := `
		INSERT INTO proration_events (
			id,
			subscription_id,
			user_id,
			from_tier,
			to_tier,
			billing_cycle,
			days_remaining,
			days_in_cycle,
			unused_credit_value_usd,
			new_tier_prorated_cost_usd,
			coupon_code,
			coupon_discount_amount,
			net_charge_usd,
			raw_net_charge_usd,
			effective_at,
			created_at
		) VALUES (
			:id,
			:subscription_id,
			:user_id,
			:from_tier,
			:to_tier,
			:billing_cycle,
			:days_remaining,
			:days_in_cycle,
			:unused_credit_value_usd,
			:new_tier_prorated_cost_usd,
			:coupon_code,
			:coupon_discount_amount,
			:net_charge_usd,
			:raw_net_charge_usd,
			:effective_at,
			:created_at
		)
	`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, event); err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to record proration event").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return nil
}

func (r *prorationEventRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*proration.Event, error) {
	span := StartRepositorySpan(ctx, "proration_event", "list_by_subscription", map[string]interface{}{
		"subscription_id": subscriptionID,
	})
	defer FinishSpan(span)

	query := `
		SELECT * FROM proration_events
		WHERE subscription_id = $1
		ORDER BY effective_at DESC, created_at DESC
	`

	events := make([]*proration.Event, 0)
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &events, query, subscriptionID); err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list proration events").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return events, nil
}
