package postgres

import (
	"context"

	"github.com/assistly/billing/internal/domain/subscription"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/postgres"
)

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	span := StartRepositorySpan(ctx, "subscription", "create", map[string]interface{}{
		"subscription_id": sub.ID,
	})
	defer FinishSpan(span)

	query := `
		INSERT INTO subscriptions (
			id,
			user_id,
			tier,
			billing_cycle,
			base_price_usd,
			current_period_start,
			current_period_end,
			status,
			created_at,
			updated_at
		) VALUES (
			:id,
			:user_id,
			:tier,
			:billing_cycle,
			:base_price_usd,
			:current_period_start,
			:current_period_end,
			:status,
			:created_at,
			:updated_at
		)
	`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub); err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	span := StartRepositorySpan(ctx, "subscription", "get", map[string]interface{}{
		"subscription_id": id,
	})
	defer FinishSpan(span)

	query := `SELECT * FROM subscriptions WHERE id = $1`

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, id); err != nil {
		SetSpanError(span, err)
		return nil, wrapGetError(err, "Subscription", id)
	}

	SetSpanSuccess(span)
	return &sub, nil
}

func (r *subscriptionRepository) GetForUpdate(ctx context.Context, id string) (*subscription.Subscription, error) {
	span := StartRepositorySpan(ctx, "subscription", "get_for_update", map[string]interface{}{
		"subscription_id": id,
	})
	defer FinishSpan(span)

	query := `SELECT * FROM subscriptions WHERE id = $1 FOR UPDATE`

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, id); err != nil {
		SetSpanError(span, err)
		return nil, wrapGetError(err, "Subscription", id)
	}

	SetSpanSuccess(span)
	return &sub, nil
}

func (r *subscriptionRepository) GetCurrentByUser(ctx context.Context, userID string) (*subscription.Subscription, error) {
	span := StartRepositorySpan(ctx, "subscription", "get_current_by_user", map[string]interface{}{
		"user_id": userID,
	})
	defer FinishSpan(span)

	query := `
		SELECT * FROM subscriptions
		WHERE user_id = $1 AND status IN ('active', 'trialing', 'past_due')
		ORDER BY current_period_end DESC, created_at DESC
		LIMIT 1
	`

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, userID); err != nil {
		SetSpanError(span, err)
		return nil, wrapGetError(err, "Subscription for user", userID)
	}

	SetSpanSuccess(span)
	return &sub, nil
}

func (r *subscriptionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	span := StartRepositorySpan(ctx, "subscription", "count_by_user", map[string]interface{}{
		"user_id": userID,
	})
	defer FinishSpan(span)

	var count int
	query := `SELECT COUNT(*) FROM subscriptions WHERE user_id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, userID); err != nil {
		SetSpanError(span, err)
		return 0, ierr.WithError(err).
			WithHint("Failed to count subscriptions").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return count, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	span := StartRepositorySpan(ctx, "subscription", "update", map[string]interface{}{
		"subscription_id": sub.ID,
	})
	defer FinishSpan(span)

	query := `
		UPDATE subscriptions SET
			tier = :tier,
			billing_cycle = :billing_cycle,
			base_price_usd = :base_price_usd,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id
	`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		err := ierr.NewErrorf("subscription %s not found", sub.ID).
			WithHintf("Subscription %s was not found", sub.ID).
			Mark(ierr.ErrNotFound)
		SetSpanError(span, err)
		return err
	}

	SetSpanSuccess(span)
	return nil
}
