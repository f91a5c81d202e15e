package testutil

import (
	"context"

	"github.com/assistly/billing/internal/domain/proration"
)

// InMemoryProrationStore implements proration.Repository
type InMemoryProrationStore struct {
	*InMemoryStore[*proration.Event]
}

func NewInMemoryProrationStore() *InMemoryProrationStore {
	return &InMemoryProrationStore{
		InMemoryStore: NewInMemoryStore[*proration.Event](),
	}
}

func (s *InMemoryProrationStore) Create(ctx context.Context, event *proration.Event) error {
	return s.InMemoryStore.Create(ctx, event.ID, event)
}

func (s *InMemoryProrationStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*proration.Event, error) {
	return s.InMemoryStore.List(ctx,
		func(_ context.Context, e *proration.Event) bool {
			return e.SubscriptionID == subscriptionID
		},
		func(a, b *proration.Event) bool {
			if a.EffectiveAt.Equal(b.EffectiveAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.EffectiveAt.After(b.EffectiveAt)
		},
	), nil
}
