package proration

import "context"

// Repository persists applied tier changes
type Repository interface {
	Create(ctx context.Context, event *Event) error
	// ListBySubscription returns events newest first
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*Event, error)
}
