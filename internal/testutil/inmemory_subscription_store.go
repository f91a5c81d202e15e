package testutil

import (
	"context"

	"github.com/assistly/billing/internal/domain/subscription"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Subscription %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(sub), nil
}

// GetForUpdate behaves like Get; the mock client runs transactions one at a time
func (s *InMemorySubscriptionStore) GetForUpdate(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.Get(ctx, id)
}

func (s *InMemorySubscriptionStore) GetCurrentByUser(ctx context.Context, userID string) (*subscription.Subscription, error) {
	live := []types.SubscriptionStatus{
		types.SubscriptionStatusActive,
		types.SubscriptionStatusTrialing,
		types.SubscriptionStatusPastDue,
	}

	subs := s.InMemoryStore.List(ctx,
		func(_ context.Context, sub *subscription.Subscription) bool {
			return sub.UserID == userID && lo.Contains(live, sub.Status)
		},
		func(a, b *subscription.Subscription) bool {
			if a.CurrentPeriodEnd.Equal(b.CurrentPeriodEnd) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CurrentPeriodEnd.After(b.CurrentPeriodEnd)
		},
	)
	if len(subs) == 0 {
		return nil, ierr.NewErrorf("no current subscription for user %s", userID).
			WithHintf("Subscription for user %s was not found", userID).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(subs[0]), nil
}

func (s *InMemorySubscriptionStore) CountByUser(ctx context.Context, userID string) (int, error) {
	return s.InMemoryStore.Count(ctx, func(_ context.Context, sub *subscription.Subscription) bool {
		return sub.UserID == userID
	}), nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	return s.InMemoryStore.Update(ctx, sub.ID, copySubscription(sub))
}

// copySubscription keeps callers from mutating stored records
func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	c := *sub
	return &c
}
