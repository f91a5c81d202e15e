package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/assistly/billing/internal/domain/proration"
	"github.com/assistly/billing/internal/domain/subscription"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/testutil"
	"github.com/assistly/billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ProrationServiceSuite struct {
	testutil.BaseServiceTestSuite
	params  ServiceParams
	service proration.Service
}

func TestProrationService(t *testing.T) {
	suite.Run(t, new(ProrationServiceSuite))
}

func (s *ProrationServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewProrationService(s.params)

	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), proMonthlySubscription("subs_1", "user_1")))
}

func (s *ProrationServiceSuite) TestPreview() {
	calc, err := s.service.Preview(s.GetContext(), "subs_1", types.SubscriptionTierProMax, proration.Options{
		ReferenceTime: tierChangeTime,
	})
	s.Require().NoError(err)

	s.Equal(11, calc.DaysRemaining)
	s.Equal(30, calc.DaysInCycle)
	s.Equal("6.97", calc.UnusedCreditValueUSD.StringFixed(2))
	s.Equal("17.97", calc.NewTierProratedCostUSD.StringFixed(2))
	s.Equal("11.00", calc.NetChargeUSD.StringFixed(2))

	// nothing persisted
	events, err := s.GetStores().ProrationRepo.ListBySubscription(s.GetContext(), "subs_1")
	s.NoError(err)
	s.Empty(events)
	s.Empty(s.GetPublisher().GetEvents())
}

func (s *ProrationServiceSuite) TestPreview_WhatIfOverrides() {
	calc, err := s.service.Preview(s.GetContext(), "subs_1", types.SubscriptionTierProMax, proration.Options{
		ReferenceTime:             time.Date(2023, 11, 25, 0, 0, 0, 0, time.UTC),
		CurrentTierEffectivePrice: decimalPtr("10"),
	})
	s.Require().NoError(err)
	s.Equal(6, calc.DaysRemaining)
	s.Equal("10.00", calc.OldTierPriceUSD.StringFixed(2))
}

func (s *ProrationServiceSuite) TestPreview_UnknownSubscription() {
	_, err := s.service.Preview(s.GetContext(), "subs_missing", types.SubscriptionTierProMax, proration.Options{})
	s.True(ierr.IsNotFound(err))
}

func (s *ProrationServiceSuite) TestApplyTierChange() {
	event, err := s.service.ApplyTierChange(s.GetContext(), proration.TierChangeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierProMax,
	})
	s.Require().NoError(err)

	s.Equal("subs_1", event.SubscriptionID)
	s.Equal("user_1", event.UserID)
	s.Equal(types.SubscriptionTierPro, event.FromTier)
	s.Equal(types.SubscriptionTierProMax, event.ToTier)
	s.Equal("11.00", event.NetChargeUSD.StringFixed(2))
	s.Nil(event.CouponCode)
	s.True(event.EffectiveAt.Equal(tierChangeTime))
	s.Equal(1, s.GetDB().Transactions())

	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "subs_1")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionTierProMax, sub.Tier)
	s.True(sub.BasePriceUSD.Equal(decimal.NewFromInt(49)))
	s.True(sub.CurrentPeriodEnd.Equal(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)))

	published := s.GetPublisher().EventsOfType(types.EventSubscriptionTierChanged)
	s.Require().Len(published, 1)
	s.Equal("subs_1", published[0].Key)
	payload, ok := published[0].Payload.(*tierChangedPayload)
	s.Require().True(ok)
	s.Equal("upgrade", payload.Direction)
	s.Equal(event.ID, payload.Event.ID)
}

func (s *ProrationServiceSuite) TestApplyTierChange_PricedFromStoredSubscription() {
	promo := proMonthlySubscription("subs_promo", "user_promo")
	promo.BasePriceUSD = decimal.NewFromInt(10)
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), promo))

	event, err := s.service.ApplyTierChange(s.GetContext(), proration.TierChangeRequest{
		SubscriptionID: "subs_promo",
		NewTier:        types.SubscriptionTierProMax,
	})
	s.Require().NoError(err)

	// 10 * 11/30 of credit against 49 * 11/30 of cost
	s.Equal(11, event.DaysRemaining)
	s.Equal("3.67", event.UnusedCreditValueUSD.StringFixed(2))
	s.Equal("14.30", event.NetChargeUSD.StringFixed(2))
	s.True(event.EffectiveAt.Equal(tierChangeTime))
}

func (s *ProrationServiceSuite) TestApplyTierChange_PublishFailureKeepsChange() {
	s.GetPublisher().FailWith(errors.New("broker down"))

	event, err := s.service.ApplyTierChange(s.GetContext(), proration.TierChangeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierFree,
	})
	s.Require().NoError(err)
	s.True(event.NetChargeUSD.IsZero())
	s.True(event.RawNetChargeUSD.IsNegative())

	events, err := s.service.ListEvents(s.GetContext(), "subs_1")
	s.NoError(err)
	s.Len(events, 1)
}

func (s *ProrationServiceSuite) TestApplyTierChange_Rejected() {
	pastDue := proMonthlySubscription("subs_past_due", "user_2")
	pastDue.Status = types.SubscriptionStatusPastDue
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), pastDue))

	tests := []struct {
		name    string
		req     proration.TierChangeRequest
		checkFn func(error) bool
	}{
		{
			name:    "unknown_subscription",
			req:     proration.TierChangeRequest{SubscriptionID: "subs_missing", NewTier: types.SubscriptionTierProMax},
			checkFn: ierr.IsNotFound,
		},
		{
			name:    "past_due_subscription",
			req:     proration.TierChangeRequest{SubscriptionID: "subs_past_due", NewTier: types.SubscriptionTierProMax},
			checkFn: ierr.IsInvalidOperation,
		},
		{
			name:    "same_tier",
			req:     proration.TierChangeRequest{SubscriptionID: "subs_1", NewTier: types.SubscriptionTierPro},
			checkFn: ierr.IsInvalidOperation,
		},
		{
			name:    "unknown_tier",
			req:     proration.TierChangeRequest{SubscriptionID: "subs_1", NewTier: "gold"},
			checkFn: ierr.IsValidation,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			event, err := s.service.ApplyTierChange(s.GetContext(), tt.req)
			s.Nil(event)
			s.True(tt.checkFn(err), "unexpected error: %v", err)
		})
	}

	s.Empty(s.GetPublisher().GetEvents())
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "subs_1")
	s.NoError(err)
	s.Equal(types.SubscriptionTierPro, sub.Tier)
}

// committedChangeRepo serves a stale snapshot from Get while GetForUpdate sees a tier change
// another transaction committed in the meantime
type committedChangeRepo struct {
	*testutil.InMemorySubscriptionStore
	stale *subscription.Subscription
}

func (r committedChangeRepo) Get(_ context.Context, _ string) (*subscription.Subscription, error) {
	stale := *r.stale
	return &stale, nil
}

func (s *ProrationServiceSuite) TestApplyTierChange_ProratesFromLockedRow() {
	ctx := s.GetContext()
	stale, err := s.GetStores().SubscriptionRepo.Get(ctx, "subs_1")
	s.Require().NoError(err)

	_, err = s.service.ApplyTierChange(ctx, proration.TierChangeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierProMax,
	})
	s.Require().NoError(err)

	params := s.params
	params.SubRepo = committedChangeRepo{InMemorySubscriptionStore: s.GetStores().SubscriptionRepo, stale: stale}

	event, err := NewProrationService(params).ApplyTierChange(ctx, proration.TierChangeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierEnterprisePro,
	})
	s.Require().NoError(err)
	s.Equal(types.SubscriptionTierProMax, event.FromTier)
	// credit for the committed pro_max price, not the stale pro one
	s.Equal("17.97", event.UnusedCreditValueUSD.StringFixed(2))
}

func (s *ProrationServiceSuite) TestListEvents() {
	_, err := s.service.ApplyTierChange(s.GetContext(), proration.TierChangeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierProMax,
	})
	s.Require().NoError(err)

	later := s.params
	later.Calculator = later.Calculator.WithClock(func() time.Time { return tierChangeTime.AddDate(0, 0, 3) })
	_, err = NewProrationService(later).ApplyTierChange(s.GetContext(), proration.TierChangeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierEnterprisePro,
	})
	s.Require().NoError(err)

	events, err := s.service.ListEvents(s.GetContext(), "subs_1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(types.SubscriptionTierEnterprisePro, events[0].ToTier)
	s.Equal(types.SubscriptionTierProMax, events[1].ToTier)
	s.Equal(8, events[0].DaysRemaining)

	_, err = s.service.ListEvents(s.GetContext(), "subs_missing")
	s.True(ierr.IsNotFound(err))
}

func decimalPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}
