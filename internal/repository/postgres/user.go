package postgres

import (
	"context"

	"github.com/assistly/billing/internal/domain/user"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/postgres"
)

type userRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewUserRepository(db *postgres.DB, logger *logger.Logger) user.Repository {
	return &userRepository{db: db, logger: logger}
}

// GetProfile reads the profile and recomputes prior subscriptions from the subscriptions table
// so rules see the live count rather than a stale column.
func (r *userRepository) GetProfile(ctx context.Context, userID string) (*user.Profile, error) {
	span := StartRepositorySpan(ctx, "user", "get_profile", map[string]interface{}{
		"user_id": userID,
	})
	defer FinishSpan(span)

	query := `
		SELECT
			p.id,
			p.email,
			GREATEST(p.prior_subscriptions, (SELECT COUNT(*) FROM subscriptions s WHERE s.user_id = p.id)) AS prior_subscriptions,
			p.last_refund_at,
			p.has_payment_method,
			p.credit_balance,
			p.created_at,
			p.updated_at
		FROM user_profiles p
		WHERE p.id = $1
	`

	var profile user.Profile
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &profile, query, userID); err != nil {
		SetSpanError(span, err)
		return nil, wrapGetError(err, "User", userID)
	}

	SetSpanSuccess(span)
	return &profile, nil
}
