package testutil

import (
	"context"
	"time"

	"github.com/assistly/billing/internal/domain/redemption"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
)

// InMemoryRedemptionStore implements redemption.Repository
type InMemoryRedemptionStore struct {
	redemptions *InMemoryStore[*redemption.Redemption]
	attempts    *InMemoryStore[*redemption.Attempt]
}

func NewInMemoryRedemptionStore() *InMemoryRedemptionStore {
	return &InMemoryRedemptionStore{
		redemptions: NewInMemoryStore[*redemption.Redemption](),
		attempts:    NewInMemoryStore[*redemption.Attempt](),
	}
}

func (s *InMemoryRedemptionStore) Create(ctx context.Context, r *redemption.Redemption) error {
	return s.redemptions.Create(ctx, r.ID, r)
}

func (s *InMemoryRedemptionStore) CreateAttempt(ctx context.Context, a *redemption.Attempt) error {
	return s.attempts.Create(ctx, a.ID, a)
}

func (s *InMemoryRedemptionStore) CountSuccessfulByCouponAndUser(ctx context.Context, couponID, userID string) (int, error) {
	return s.redemptions.Count(ctx, func(_ context.Context, r *redemption.Redemption) bool {
		return r.CouponID == couponID && r.UserID == userID && r.Status == types.RedemptionStatusSuccess
	}), nil
}

func (s *InMemoryRedemptionStore) CountAttemptsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return s.attempts.Count(ctx, func(_ context.Context, a *redemption.Attempt) bool {
		return a.UserID == userID && !a.AttemptedAt.Before(since)
	}), nil
}

func (s *InMemoryRedemptionStore) DistinctIPsByUser(ctx context.Context, userID string) ([]string, error) {
	list, _ := s.ListByUser(ctx, userID)
	ips := lo.FilterMap(list, func(r *redemption.Redemption, _ int) (string, bool) {
		return lo.FromPtr(r.IPAddress), r.IPAddress != nil && r.Status == types.RedemptionStatusSuccess
	})
	return lo.Uniq(ips), nil
}

func (s *InMemoryRedemptionStore) ListByUser(ctx context.Context, userID string) ([]*redemption.Redemption, error) {
	return s.redemptions.List(ctx,
		func(_ context.Context, r *redemption.Redemption) bool {
			return r.UserID == userID
		},
		func(a, b *redemption.Redemption) bool {
			return a.RedeemedAt.After(b.RedeemedAt)
		},
	), nil
}

// Attempts returns the user's recorded validation attempts
func (s *InMemoryRedemptionStore) Attempts(ctx context.Context, userID string) []*redemption.Attempt {
	return s.attempts.List(ctx, func(_ context.Context, a *redemption.Attempt) bool {
		return a.UserID == userID
	}, nil)
}

func (s *InMemoryRedemptionStore) Clear() {
	s.redemptions.Clear()
	s.attempts.Clear()
}
