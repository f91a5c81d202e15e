package subscription

import "context"

// Repository defines the interface for subscription data access
type Repository interface {
	// Get returns the subscription or an error marked ErrNotFound
	Get(ctx context.Context, id string) (*Subscription, error)
	// GetForUpdate is Get with the row locked until the surrounding transaction ends
	GetForUpdate(ctx context.Context, id string) (*Subscription, error)
	// GetCurrentByUser returns the user's live subscription (active, trialing or past due), latest period first.
	// ErrNotFound means the user is on the free plan.
	GetCurrentByUser(ctx context.Context, userID string) (*Subscription, error)
	// CountByUser returns how many subscriptions the user has ever held, paid or not
	CountByUser(ctx context.Context, userID string) (int, error)
	Create(ctx context.Context, sub *Subscription) error
	// Update overwrites tier, billing cycle, base price and status
	Update(ctx context.Context, sub *Subscription) error
}
