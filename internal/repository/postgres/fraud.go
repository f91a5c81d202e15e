package postgres

import (
	"context"

	"github.com/assistly/billing/internal/domain/fraud"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/postgres"
	"github.com/assistly/billing/internal/types"
)

type fraudRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewFraudRepository(db *postgres.DB, logger *logger.Logger) fraud.Repository {
	return &fraudRepository{db: db, logger: logger}
}

func (r *fraudRepository) Create(ctx context.Context, d *fraud.Detection) error {
	span := StartRepositorySpan(ctx, "fraud", "create", map[string]interface{}{
		"user_id":        d.UserID,
		"detection_type": d.Type,
	})
	defer FinishSpan(span)

	details, err := marshalJSONB(d.Details)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Fraud detection details are not valid JSON").
			Mark(ierr.ErrValidation)
	}

	query := `
		INSERT INTO fraud_detections (
			id, user_id, coupon_id, detection_type, severity, flagged, reviewed,
			ip_address, details, detected_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		d.ID, d.UserID, d.CouponID, d.Type, d.Severity, d.Flagged, d.Reviewed,
		d.IPAddress, details, d.DetectedAt, d.CreatedAt,
	); err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to record fraud detection").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return nil
}

func (r *fraudRepository) CountUnreviewedCritical(ctx context.Context, couponID, userID string) (int, error) {
	span := StartRepositorySpan(ctx, "fraud", "count_unreviewed_critical", map[string]interface{}{
		"coupon_id": couponID,
		"user_id":   userID,
	})
	defer FinishSpan(span)

	query := `
		SELECT COUNT(*) FROM fraud_detections
		WHERE coupon_id = $1 AND user_id = $2 AND severity = $3 AND reviewed = FALSE
	`

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, couponID, userID, types.FraudSeverityCritical); err != nil {
		SetSpanError(span, err)
		return 0, ierr.WithError(err).
			WithHint("Failed to count fraud detections").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return count, nil
}
