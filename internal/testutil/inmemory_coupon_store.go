package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/assistly/billing/internal/domain/coupon"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/shopspring/decimal"
)

// InMemoryCouponStore implements coupon.Repository. Campaigns and usage counters are kept apart from
// the coupon records and attached on read, as the postgres repository does.
type InMemoryCouponStore struct {
	*InMemoryStore[*coupon.Coupon]

	mu        sync.Mutex
	campaigns map[string]*coupon.Campaign
	usage     map[string]*coupon.UsageLimits
	err       error
}

func NewInMemoryCouponStore() *InMemoryCouponStore {
	return &InMemoryCouponStore{
		InMemoryStore: NewInMemoryStore[*coupon.Coupon](),
		campaigns:     make(map[string]*coupon.Campaign),
		usage:         make(map[string]*coupon.UsageLimits),
	}
}

// FailWith makes every read return err until it is called again with nil
func (s *InMemoryCouponStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *InMemoryCouponStore) Create(ctx context.Context, c *coupon.Coupon) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, err := s.GetByCode(ctx, c.Code); err == nil {
		return ierr.NewErrorf("coupon %s already exists", c.Code).
			WithHint("A coupon with this code already exists").
			Mark(ierr.ErrAlreadyExists)
	}

	s.mu.Lock()
	if c.Campaign != nil {
		campaign := *c.Campaign
		s.campaigns[campaign.ID] = &campaign
	}
	if c.UsageLimits != nil {
		usage := *c.UsageLimits
		s.usage[c.ID] = &usage
	}
	s.mu.Unlock()

	stored := *c
	stored.Campaign = nil
	stored.UsageLimits = nil
	return s.InMemoryStore.Create(ctx, c.ID, &stored)
}

func (s *InMemoryCouponStore) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Coupon %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return s.hydrate(c), nil
}

func (s *InMemoryCouponStore) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	matches := s.InMemoryStore.List(ctx, func(_ context.Context, c *coupon.Coupon) bool {
		return c.Code == code
	}, nil)
	if len(matches) == 0 {
		return nil, ierr.NewErrorf("coupon %s not found", code).
			WithHintf("Coupon %s not found", code).
			Mark(ierr.ErrNotFound)
	}
	return s.hydrate(matches[0]), nil
}

func (s *InMemoryCouponStore) IncrementUsage(ctx context.Context, couponID string) (*coupon.UsageLimits, error) {
	c, err := s.InMemoryStore.Get(ctx, couponID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Coupon %s not found", couponID).
			Mark(ierr.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	usage, ok := s.usage[couponID]
	if !ok {
		usage = &coupon.UsageLimits{CouponID: couponID}
		s.usage[couponID] = usage
	}
	if c.MaxUses != nil && usage.TotalUses >= *c.MaxUses {
		return nil, ierr.NewErrorf("coupon %s reached its usage limit", couponID).
			WithHint("This coupon has reached its usage limit").
			Mark(ierr.ErrInvalidOperation)
	}
	usage.TotalUses++
	usage.UpdatedAt = time.Now().UTC()

	out := *usage
	return &out, nil
}

func (s *InMemoryCouponStore) AddCampaignSpend(ctx context.Context, campaignID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return ierr.NewErrorf("campaign %s not found", campaignID).
			WithHintf("Campaign %s not found", campaignID).
			Mark(ierr.ErrNotFound)
	}
	campaign.TotalSpentUSD = campaign.TotalSpentUSD.Add(amount)
	campaign.UpdatedAt = time.Now().UTC()
	return nil
}

// SetTotalUses overwrites the usage counter, standing in for redemptions made elsewhere
func (s *InMemoryCouponStore) SetTotalUses(couponID string, uses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[couponID] = &coupon.UsageLimits{CouponID: couponID, TotalUses: uses, UpdatedAt: time.Now().UTC()}
}

func (s *InMemoryCouponStore) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *InMemoryCouponStore) hydrate(stored *coupon.Coupon) *coupon.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *stored
	if usage, ok := s.usage[c.ID]; ok {
		u := *usage
		c.UsageLimits = &u
	}
	if c.CampaignID != nil {
		if campaign, ok := s.campaigns[*c.CampaignID]; ok {
			cp := *campaign
			c.Campaign = &cp
		}
	}
	return &c
}

func (s *InMemoryCouponStore) Clear() {
	s.InMemoryStore.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns = make(map[string]*coupon.Campaign)
	s.usage = make(map[string]*coupon.UsageLimits)
	s.err = nil
}
