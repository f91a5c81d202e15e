package service

import (
	"testing"

	"github.com/assistly/billing/internal/domain/coupon"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/testutil"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type CheckoutServiceSuite struct {
	testutil.BaseServiceTestSuite
	params  ServiceParams
	service CheckoutService
	upgrade *coupon.Coupon
}

func TestCheckoutService(t *testing.T) {
	suite.Run(t, new(CheckoutServiceSuite))
}

func (s *CheckoutServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewCheckoutService(s.params, NewCouponValidationService(s.params))

	ctx := s.GetContext()
	s.NoError(s.GetStores().SubscriptionRepo.Create(ctx, proMonthlySubscription("subs_1", "user_1")))

	s.upgrade = activeCoupon(s.GetNow(), "UPGRADE20", types.DiscountTypePercentage, 20)
	s.upgrade.TierEligibility = []types.SubscriptionTier{types.SubscriptionTierPro}
	s.NoError(s.GetStores().CouponRepo.Create(ctx, s.upgrade))

	credits := activeCoupon(s.GetNow(), "CREDITS50", types.DiscountTypeCredits, 50)
	s.NoError(s.GetStores().CouponRepo.Create(ctx, credits))

	maxOnly := activeCoupon(s.GetNow(), "MAXONLY10", types.DiscountTypePercentage, 10)
	maxOnly.TierEligibility = []types.SubscriptionTier{types.SubscriptionTierProMax}
	s.NoError(s.GetStores().CouponRepo.Create(ctx, maxOnly))
}

func (s *CheckoutServiceSuite) TestPreviewUpgrade() {
	tests := []struct {
		name        string
		code        string
		wantApplied bool
		wantCode    types.CouponValidationErrorCode
		wantNet     string
		wantOff     string
	}{
		{name: "no_coupon", code: "", wantNet: "11.00", wantOff: "0.00"},
		{name: "percentage_coupon", code: "UPGRADE20", wantApplied: true, wantNet: "7.41", wantOff: "3.59"},
		{name: "credits_coupon_leaves_price", code: "CREDITS50", wantNet: "11.00", wantOff: "0.00"},
		{name: "checked_against_current_tier", code: "MAXONLY10", wantCode: types.CouponValidationErrorCodeTierNotEligible, wantNet: "11.00", wantOff: "0.00"},
		{name: "unknown_coupon", code: "MISSING1", wantCode: types.CouponValidationErrorCodeNotFound, wantNet: "11.00", wantOff: "0.00"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			// one owner per case keeps the velocity window clear
			subID := "subs_" + tt.name
			s.Require().NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), proMonthlySubscription(subID, "user_"+tt.name)))

			resp, err := s.service.PreviewUpgrade(s.GetContext(), UpgradePreviewRequest{
				SubscriptionID: subID,
				NewTier:        types.SubscriptionTierProMax,
				CouponCode:     tt.code,
				ReferenceTime:  tierChangeTime,
			})
			s.Require().NoError(err)

			s.Equal(tt.wantApplied, resp.CouponApplied)
			s.Equal(tt.wantNet, resp.Proration.NetChargeUSD.StringFixed(2))
			s.Equal(tt.wantOff, resp.Proration.CouponDiscountAmount.StringFixed(2))

			if tt.code == "" {
				s.Nil(resp.Coupon)
				return
			}
			s.Require().NotNil(resp.Coupon)
			s.Equal(tt.wantCode, resp.Coupon.ErrorCode())
		})
	}
}

func (s *CheckoutServiceSuite) TestPreviewUpgrade_CartTotalIsProratedCost() {
	resp, err := s.service.PreviewUpgrade(s.GetContext(), UpgradePreviewRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierProMax,
		CouponCode:     "UPGRADE20",
		ReferenceTime:  tierChangeTime,
	})
	s.Require().NoError(err)
	s.Require().True(resp.Coupon.IsValid)
	s.Equal("17.97", resp.Coupon.Discount.OriginalAmount.StringFixed(2))
	s.Equal("UPGRADE20", resp.Proration.CouponCode)

	// validation attempts are recorded against the subscription owner
	s.Len(s.GetStores().RedemptionRepo.Attempts(s.GetContext(), "user_1"), 1)

	// previews write nothing
	s.Empty(s.GetPublisher().GetEvents())
	list, err := s.GetStores().RedemptionRepo.ListByUser(s.GetContext(), "user_1")
	s.NoError(err)
	s.Empty(list)
}

func (s *CheckoutServiceSuite) TestApplyUpgrade_WithCoupon() {
	ctx := s.GetContext()
	resp, err := s.service.ApplyUpgrade(ctx, UpgradeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierProMax,
		CouponCode:     "upgrade20",
		Context:        coupon.ValidationContext{IPAddress: "192.0.2.10"},
	})
	s.Require().NoError(err)
	s.True(resp.CouponApplied)
	s.True(resp.Coupon.IsValid)

	s.Require().NotNil(resp.Event)
	s.Equal("UPGRADE20", lo.FromPtr(resp.Event.CouponCode))
	s.Equal("3.59", resp.Event.CouponDiscountAmount.StringFixed(2))
	s.Equal("7.41", resp.Event.NetChargeUSD.StringFixed(2))
	s.True(resp.Event.EffectiveAt.Equal(tierChangeTime))

	s.Require().NotNil(resp.Redemption)
	s.Equal("user_1", resp.Redemption.UserID)
	s.Equal("17.97", resp.Redemption.OriginalAmount.StringFixed(2))
	s.Equal("3.59", resp.Redemption.DiscountAmount.StringFixed(2))
	s.Equal("14.38", resp.Redemption.FinalAmount.StringFixed(2))
	s.Equal("192.0.2.10", lo.FromPtr(resp.Redemption.IPAddress))

	// one transaction covers the redemption and the tier change
	s.Equal(1, s.GetDB().Transactions())

	stored, err := s.GetStores().CouponRepo.Get(ctx, s.upgrade.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.TotalUses())

	sub, err := s.GetStores().SubscriptionRepo.Get(ctx, "subs_1")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionTierProMax, sub.Tier)

	events, err := s.GetStores().ProrationRepo.ListBySubscription(ctx, "subs_1")
	s.NoError(err)
	s.Require().Len(events, 1)
	s.Equal(resp.Event.ID, events[0].ID)

	s.Len(s.GetPublisher().EventsOfType(types.EventSubscriptionTierChanged), 1)
	s.Len(s.GetPublisher().EventsOfType(types.EventCouponRedeemed), 1)
}

func (s *CheckoutServiceSuite) TestApplyUpgrade_WithoutCoupon() {
	resp, err := s.service.ApplyUpgrade(s.GetContext(), UpgradeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierProMax,
	})
	s.Require().NoError(err)
	s.Nil(resp.Coupon)
	s.Nil(resp.Redemption)
	s.False(resp.CouponApplied)
	s.Require().NotNil(resp.Event)
	s.Equal("11.00", resp.Event.NetChargeUSD.StringFixed(2))
	s.Empty(s.GetStores().RedemptionRepo.Attempts(s.GetContext(), "user_1"))
}

func (s *CheckoutServiceSuite) TestApplyUpgrade_CouponNotReducingPrice() {
	resp, err := s.service.ApplyUpgrade(s.GetContext(), UpgradeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierProMax,
		CouponCode:     "CREDITS50",
	})
	s.Require().NoError(err)
	s.True(resp.Coupon.IsValid)
	s.False(resp.CouponApplied)
	s.Nil(resp.Redemption)
	s.Require().NotNil(resp.Event)
	s.Nil(resp.Event.CouponCode)
	s.Equal("11.00", resp.Event.NetChargeUSD.StringFixed(2))
	s.Empty(s.GetPublisher().EventsOfType(types.EventCouponRedeemed))
}

func (s *CheckoutServiceSuite) TestApplyUpgrade_RejectedCouponChangesNothing() {
	resp, err := s.service.ApplyUpgrade(s.GetContext(), UpgradeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierProMax,
		CouponCode:     "MAXONLY10",
	})
	s.Require().NoError(err)
	s.Nil(resp.Event)
	s.Equal(types.CouponValidationErrorCodeTierNotEligible, resp.Coupon.ErrorCode())
	s.assertUnchanged("subs_1")
}

func (s *CheckoutServiceSuite) TestApplyUpgrade_LostRace() {
	lastOne := activeCoupon(s.GetNow(), "LASTONE", types.DiscountTypePercentage, 20)
	lastOne.MaxUses = lo.ToPtr(1)
	s.Require().NoError(s.GetStores().CouponRepo.Create(s.GetContext(), lastOne))

	params := s.params
	params.CouponRepo = racingCouponRepo{s.GetStores().CouponRepo}
	svc := NewCheckoutService(params, NewCouponValidationService(params))

	resp, err := svc.ApplyUpgrade(s.GetContext(), UpgradeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierProMax,
		CouponCode:     "LASTONE",
	})
	s.Require().NoError(err)
	s.Nil(resp.Event)
	s.Nil(resp.Redemption)
	s.Equal(types.CouponValidationErrorCodeMaxUsesExceeded, resp.Coupon.ErrorCode())
	s.assertUnchanged("subs_1")
}

func (s *CheckoutServiceSuite) TestApplyUpgrade_Rejected() {
	_, err := s.service.ApplyUpgrade(s.GetContext(), UpgradeRequest{
		SubscriptionID: "subs_missing",
		NewTier:        types.SubscriptionTierProMax,
		CouponCode:     "UPGRADE20",
	})
	s.True(ierr.IsNotFound(err))

	_, err = s.service.ApplyUpgrade(s.GetContext(), UpgradeRequest{
		SubscriptionID: "subs_1",
		NewTier:        types.SubscriptionTierPro,
	})
	s.True(ierr.IsInvalidOperation(err))
	s.assertUnchanged("subs_1")
}

func (s *CheckoutServiceSuite) assertUnchanged(subID string) {
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), subID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionTierPro, sub.Tier)

	events, err := s.GetStores().ProrationRepo.ListBySubscription(s.GetContext(), subID)
	s.NoError(err)
	s.Empty(events)
	s.Empty(s.GetPublisher().EventsOfType(types.EventSubscriptionTierChanged))
}
