package postgres

import (
	"context"
	"time"

	"github.com/assistly/billing/internal/domain/redemption"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/postgres"
	"github.com/assistly/billing/internal/types"
)

type redemptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewRedemptionRepository(db *postgres.DB, logger *logger.Logger) redemption.Repository {
	return &redemptionRepository{db: db, logger: logger}
}

func (r *redemptionRepository) Create(ctx context.Context, red *redemption.Redemption) error {
	span := StartRepositorySpan(ctx, "redemption", "create", map[string]interface{}{
		"coupon_id": red.CouponID,
		"user_id":   red.UserID,
	})
	defer FinishSpan(span)

	query := `
		INSERT INTO coupon_redemptions (
			id,
			coupon_id,
			user_id,
			code,
			discount_type,
			original_amount,
			discount_amount,
			final_amount,
			ip_address,
			device_fingerprint,
			status,
			redeemed_at
		) VALUES (
			:id,
			:coupon_id,
			:user_id,
			:code,
			:discount_type,
			:original_amount,
			:discount_amount,
			:final_amount,
			:ip_address,
			:device_fingerprint,
			:status,
			:redeemed_at
		)
	`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, red); err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to record coupon redemption").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return nil
}

func (r *redemptionRepository) CreateAttempt(ctx context.Context, a *redemption.Attempt) error {
	span := StartRepositorySpan(ctx, "redemption", "create_attempt", map[string]interface{}{
		"user_id": a.UserID,
	})
	defer FinishSpan(span)

	query := `
		INSERT INTO coupon_redemption_attempts (id, user_id, code, ip_address, attempted_at)
		VALUES (:id, :user_id, :code, :ip_address, :attempted_at)
	`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, a); err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to record coupon attempt").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return nil
}

func (r *redemptionRepository) CountSuccessfulByCouponAndUser(ctx context.Context, couponID, userID string) (int, error) {
	span := StartRepositorySpan(ctx, "redemption", "count_successful", map[string]interface{}{
		"coupon_id": couponID,
		"user_id":   userID,
	})
	defer FinishSpan(span)

	query := `
		SELECT COUNT(*) FROM coupon_redemptions
		WHERE coupon_id = $1 AND user_id = $2 AND status = $3
	`

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, couponID, userID, types.RedemptionStatusSuccess); err != nil {
		SetSpanError(span, err)
		return 0, ierr.WithError(err).
			WithHint("Failed to count coupon redemptions").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return count, nil
}

func (r *redemptionRepository) CountAttemptsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	span := StartRepositorySpan(ctx, "redemption", "count_attempts_since", map[string]interface{}{
		"user_id": userID,
		"since":   since,
	})
	defer FinishSpan(span)

	query := `
		SELECT COUNT(*) FROM coupon_redemption_attempts
		WHERE user_id = $1 AND attempted_at >= $2
	`

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, userID, since); err != nil {
		SetSpanError(span, err)
		return 0, ierr.WithError(err).
			WithHint("Failed to count coupon attempts").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return count, nil
}

func (r *redemptionRepository) DistinctIPsByUser(ctx context.Context, userID string) ([]string, error) {
	span := StartRepositorySpan(ctx, "redemption", "distinct_ips_by_user", map[string]interface{}{
		"user_id": userID,
	})
	defer FinishSpan(span)

	query := `
		SELECT DISTINCT ip_address FROM coupon_redemptions
		WHERE user_id = $1 AND status = $2 AND ip_address IS NOT NULL
		ORDER BY ip_address
	`

	ips := make([]string, 0)
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &ips, query, userID, types.RedemptionStatusSuccess); err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to load redemption IP addresses").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return ips, nil
}

func (r *redemptionRepository) ListByUser(ctx context.Context, userID string) ([]*redemption.Redemption, error) {
	span := StartRepositorySpan(ctx, "redemption", "list_by_user", map[string]interface{}{
		"user_id": userID,
	})
	defer FinishSpan(span)

	query := `SELECT * FROM coupon_redemptions WHERE user_id = $1 ORDER BY redeemed_at DESC`

	redemptions := make([]*redemption.Redemption, 0)
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &redemptions, query, userID); err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list coupon redemptions").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return redemptions, nil
}
