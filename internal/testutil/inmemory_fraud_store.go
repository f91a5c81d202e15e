package testutil

import (
	"context"

	"github.com/assistly/billing/internal/domain/fraud"
	"github.com/samber/lo"
)

// InMemoryFraudStore implements fraud.Repository
type InMemoryFraudStore struct {
	*InMemoryStore[*fraud.Detection]
}

func NewInMemoryFraudStore() *InMemoryFraudStore {
	return &InMemoryFraudStore{
		InMemoryStore: NewInMemoryStore[*fraud.Detection](),
	}
}

func (s *InMemoryFraudStore) Create(ctx context.Context, d *fraud.Detection) error {
	return s.InMemoryStore.Create(ctx, d.ID, d)
}

func (s *InMemoryFraudStore) CountUnreviewedCritical(ctx context.Context, couponID, userID string) (int, error) {
	return s.InMemoryStore.Count(ctx, func(_ context.Context, d *fraud.Detection) bool {
		return d.UserID == userID && lo.FromPtr(d.CouponID) == couponID && d.IsBlocking()
	}), nil
}

// All returns every stored detection
func (s *InMemoryFraudStore) All(ctx context.Context) []*fraud.Detection {
	return s.InMemoryStore.List(ctx, nil, func(a, b *fraud.Detection) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
