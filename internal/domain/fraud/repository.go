package fraud

import "context"

type Repository interface {
	Create(ctx context.Context, d *Detection) error
	// CountUnreviewedCritical counts blocking records for the (coupon, user) pair
	CountUnreviewedCritical(ctx context.Context, couponID, userID string) (int, error)
}
