package redemption

import (
	"context"
	"time"
)

// Repository reads and writes redemption history
type Repository interface {
	Create(ctx context.Context, r *Redemption) error
	CreateAttempt(ctx context.Context, a *Attempt) error

	// CountSuccessfulByCouponAndUser counts the user's successful redemptions of one coupon
	CountSuccessfulByCouponAndUser(ctx context.Context, couponID, userID string) (int, error)

	// CountAttemptsSince counts the user's validation attempts across all coupons at or after since
	CountAttemptsSince(ctx context.Context, userID string, since time.Time) (int, error)

	// DistinctIPsByUser lists the distinct IP addresses of the user's successful redemptions
	DistinctIPsByUser(ctx context.Context, userID string) ([]string, error)

	ListByUser(ctx context.Context, userID string) ([]*Redemption, error)
}
