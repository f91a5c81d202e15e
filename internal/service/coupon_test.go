package service

import (
	"context"
	"testing"
	"time"

	"github.com/assistly/billing/internal/domain/coupon"
	"github.com/assistly/billing/internal/domain/redemption"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/testutil"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CouponServiceSuite struct {
	testutil.BaseServiceTestSuite
	params  ServiceParams
	service CouponService
}

func TestCouponService(t *testing.T) {
	suite.Run(t, new(CouponServiceSuite))
}

func (s *CouponServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewCouponService(s.params, NewCouponValidationService(s.params))
}

func (s *CouponServiceSuite) redeem(code, userID string, cart int64) (*RedeemCouponResponse, error) {
	return s.service.RedeemCoupon(s.GetContext(), RedeemCouponRequest{
		Code:   code,
		UserID: userID,
		Context: coupon.ValidationContext{
			CartTotal:         decimal.NewFromInt(cart),
			SubscriptionTier:  types.SubscriptionTierPro,
			IPAddress:         "198.51.100.4",
			DeviceFingerprint: "fp_123",
		},
	})
}

func (s *CouponServiceSuite) TestRedeemCoupon() {
	c := activeCoupon(s.GetNow(), "SUMMER20", types.DiscountTypePercentage, 20)
	s.Require().NoError(s.GetStores().CouponRepo.Create(s.GetContext(), c))

	resp, err := s.redeem("SUMMER20", "user_1", 100)
	s.Require().NoError(err)
	s.True(resp.Result.IsValid)
	s.Require().NotNil(resp.Redemption)

	red := resp.Redemption
	s.Equal(c.ID, red.CouponID)
	s.Equal("SUMMER20", red.Code)
	s.Equal(types.RedemptionStatusSuccess, red.Status)
	s.Equal("20.00", red.DiscountAmount.StringFixed(2))
	s.Equal("80.00", red.FinalAmount.StringFixed(2))
	s.Equal("198.51.100.4", lo.FromPtr(red.IPAddress))
	s.Equal("fp_123", lo.FromPtr(red.DeviceFingerprint))

	stored, err := s.GetStores().CouponRepo.Get(s.GetContext(), c.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.TotalUses())

	ips, err := s.GetStores().RedemptionRepo.DistinctIPsByUser(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal([]string{"198.51.100.4"}, ips)

	published := s.GetPublisher().EventsOfType(types.EventCouponRedeemed)
	s.Require().Len(published, 1)
	s.Equal(red, published[0].Payload.(*redemption.Redemption))
}

func (s *CouponServiceSuite) TestRedeemCoupon_PerUserLimit() {
	c := activeCoupon(s.GetNow(), "ONCEONLY", types.DiscountTypeFixedAmount, 10)
	s.Require().NoError(s.GetStores().CouponRepo.Create(s.GetContext(), c))

	first, err := s.redeem("ONCEONLY", "user_1", 50)
	s.Require().NoError(err)
	s.True(first.Result.IsValid)

	second, err := s.redeem("ONCEONLY", "user_1", 50)
	s.Require().NoError(err)
	s.False(second.Result.IsValid)
	s.Nil(second.Redemption)
	s.Equal(types.CouponValidationErrorCodeMaxUserUsesExceeded, second.Result.ErrorCode())

	stored, err := s.GetStores().CouponRepo.Get(s.GetContext(), c.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.TotalUses())
}

func (s *CouponServiceSuite) TestRedeemCoupon_CampaignSpend() {
	tests := []struct {
		name         string
		discountType types.DiscountType
		value        int64
		wantSpent    string
	}{
		{name: "fixed_amount", discountType: types.DiscountTypeFixedAmount, value: 15, wantSpent: "15.00"},
		{name: "credits", discountType: types.DiscountTypeCredits, value: 25, wantSpent: "25.00"},
		{name: "months_free", discountType: types.DiscountTypeMonthsFree, value: 2, wantSpent: "0.00"},
	}

	for i, tt := range tests {
		s.Run(tt.name, func() {
			campaignID := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CAMPAIGN)
			code := "CAMPAIGN" + string(rune('A'+i))

			c := activeCoupon(s.GetNow(), code, tt.discountType, tt.value)
			c.Type = types.CouponTypeCampaign
			c.CampaignID = lo.ToPtr(campaignID)
			c.Campaign = &coupon.Campaign{
				ID:             campaignID,
				Name:           "launch",
				BudgetLimitUSD: lo.ToPtr(decimal.NewFromInt(1000)),
			}
			s.Require().NoError(s.GetStores().CouponRepo.Create(s.GetContext(), c))

			resp, err := s.redeem(code, "user_campaign_"+tt.name, 100)
			s.Require().NoError(err)
			s.Require().True(resp.Result.IsValid)

			stored, err := s.GetStores().CouponRepo.Get(s.GetContext(), c.ID)
			s.Require().NoError(err)
			s.Equal(tt.wantSpent, stored.Campaign.TotalSpentUSD.StringFixed(2))
		})
	}
}

func (s *CouponServiceSuite) TestRedeemCoupon_BudgetExhausted() {
	campaignID := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CAMPAIGN)
	c := activeCoupon(s.GetNow(), "SPENTOUT", types.DiscountTypeFixedAmount, 10)
	c.CampaignID = lo.ToPtr(campaignID)
	c.Campaign = &coupon.Campaign{
		ID:             campaignID,
		BudgetLimitUSD: lo.ToPtr(decimal.NewFromInt(100)),
		TotalSpentUSD:  decimal.NewFromInt(100),
	}
	s.Require().NoError(s.GetStores().CouponRepo.Create(s.GetContext(), c))

	resp, err := s.redeem("SPENTOUT", "user_1", 50)
	s.Require().NoError(err)
	s.Equal(types.CouponValidationErrorCodeCampaignBudgetExceeded, resp.Result.ErrorCode())
	s.Empty(s.GetPublisher().EventsOfType(types.EventCouponRedeemed))
}

// racingCouponRepo consumes the last use right before the redemption's own increment
type racingCouponRepo struct {
	*testutil.InMemoryCouponStore
}

func (r racingCouponRepo) IncrementUsage(ctx context.Context, couponID string) (*coupon.UsageLimits, error) {
	r.SetTotalUses(couponID, 1)
	return r.InMemoryCouponStore.IncrementUsage(ctx, couponID)
}

func (s *CouponServiceSuite) TestRedeemCoupon_LostRace() {
	c := activeCoupon(s.GetNow(), "LASTONE", types.DiscountTypeFixedAmount, 10)
	c.MaxUses = lo.ToPtr(1)
	s.Require().NoError(s.GetStores().CouponRepo.Create(s.GetContext(), c))

	params := s.params
	params.CouponRepo = racingCouponRepo{s.GetStores().CouponRepo}
	svc := NewCouponService(params, NewCouponValidationService(params))

	resp, err := svc.RedeemCoupon(s.GetContext(), RedeemCouponRequest{
		Code:    "LASTONE",
		UserID:  "user_1",
		Context: coupon.ValidationContext{CartTotal: decimal.NewFromInt(40)},
	})
	s.Require().NoError(err)
	s.False(resp.Result.IsValid)
	s.Equal(types.CouponValidationErrorCodeMaxUsesExceeded, resp.Result.ErrorCode())
	s.Nil(resp.Redemption)

	list, err := s.GetStores().RedemptionRepo.ListByUser(s.GetContext(), "user_1")
	s.NoError(err)
	s.Empty(list)
}

// concurrentRedemptionRepo commits a redemption by userID from another request right before the increment
type concurrentRedemptionRepo struct {
	*testutil.InMemoryCouponStore
	redemptions *testutil.InMemoryRedemptionStore
	userID      string
}

func (r concurrentRedemptionRepo) IncrementUsage(ctx context.Context, couponID string) (*coupon.UsageLimits, error) {
	c, err := r.Get(ctx, couponID)
	if err != nil {
		return nil, err
	}
	if err := r.redemptions.Create(ctx, &redemption.Redemption{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REDEMPTION),
		CouponID:     c.ID,
		UserID:       r.userID,
		Code:         c.Code,
		DiscountType: c.DiscountType,
		Status:       types.RedemptionStatusSuccess,
		RedeemedAt:   time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	return r.InMemoryCouponStore.IncrementUsage(ctx, couponID)
}

func (s *CouponServiceSuite) TestRedeemCoupon_PerUserLimitRecheckedInTransaction() {
	c := activeCoupon(s.GetNow(), "ONCEONLY", types.DiscountTypeFixedAmount, 10)
	s.Require().NoError(s.GetStores().CouponRepo.Create(s.GetContext(), c))

	params := s.params
	params.CouponRepo = concurrentRedemptionRepo{
		InMemoryCouponStore: s.GetStores().CouponRepo,
		redemptions:         s.GetStores().RedemptionRepo,
		userID:              "user_1",
	}
	svc := NewCouponService(params, NewCouponValidationService(params))

	resp, err := svc.RedeemCoupon(s.GetContext(), RedeemCouponRequest{
		Code:    "ONCEONLY",
		UserID:  "user_1",
		Context: coupon.ValidationContext{CartTotal: decimal.NewFromInt(40)},
	})
	s.Require().NoError(err)
	s.False(resp.Result.IsValid)
	s.Nil(resp.Redemption)
	s.Equal(types.CouponValidationErrorCodeMaxUserUsesExceeded, resp.Result.ErrorCode())

	// only the concurrent request's redemption exists
	list, err := s.GetStores().RedemptionRepo.ListByUser(s.GetContext(), "user_1")
	s.NoError(err)
	s.Len(list, 1)
	s.Empty(s.GetPublisher().EventsOfType(types.EventCouponRedeemed))
}

func (s *CouponServiceSuite) TestPreviewDiscount() {
	c := activeCoupon(s.GetNow(), "TENOFF", types.DiscountTypeFixedAmount, 10)
	s.Require().NoError(s.GetStores().CouponRepo.Create(s.GetContext(), c))

	calc, err := s.service.PreviewDiscount(s.GetContext(), "tenoff", decimal.NewFromFloat(7.5))
	s.Require().NoError(err)
	s.Equal("7.50", calc.DiscountAmount.StringFixed(2))
	s.True(calc.FinalAmount.IsZero())

	_, err = s.service.PreviewDiscount(s.GetContext(), "TENOFF", decimal.NewFromInt(-1))
	s.True(ierr.IsValidation(err))

	_, err = s.service.PreviewDiscount(s.GetContext(), "NOPE1234", decimal.NewFromInt(10))
	s.True(ierr.IsNotFound(err))

	// previews record nothing
	s.Empty(s.GetStores().RedemptionRepo.Attempts(s.GetContext(), types.DefaultUserID))
}

func (s *CouponServiceSuite) TestCreateCoupon() {
	c := activeCoupon(s.GetNow(), " welcome10 ", types.DiscountTypePercentage, 10)
	c.ID = ""
	c.ValidationRules = []*coupon.ValidationRule{
		{RuleType: types.ValidationRuleFirstTimeUser, IsActive: true},
	}

	created, err := s.service.CreateCoupon(s.GetContext(), c)
	s.Require().NoError(err)
	s.Equal("WELCOME10", created.Code)
	s.NotEmpty(created.ID)
	s.Equal(created.ID, created.ValidationRules[0].CouponID)
	s.NotEmpty(created.ValidationRules[0].ID)

	stored, err := s.GetStores().CouponRepo.GetByCode(s.GetContext(), "WELCOME10")
	s.Require().NoError(err)
	s.Equal(created.ID, stored.ID)

	_, err = s.service.CreateCoupon(s.GetContext(), activeCoupon(s.GetNow(), "WELCOME10", types.DiscountTypeFixedAmount, 5))
	s.True(ierr.IsAlreadyExists(err))

	_, err = s.service.CreateCoupon(s.GetContext(), activeCoupon(s.GetNow(), "BAD", types.DiscountTypeFixedAmount, 5))
	s.True(ierr.IsValidation(err))

	unknownRule := activeCoupon(s.GetNow(), "LOYAL10", types.DiscountTypePercentage, 10)
	unknownRule.ValidationRules = []*coupon.ValidationRule{
		{RuleType: types.ValidationRuleType("loyalty_tier"), IsActive: true},
	}
	_, err = s.service.CreateCoupon(s.GetContext(), unknownRule)
	s.True(ierr.IsValidation(err))

	halfMonth := activeCoupon(s.GetNow(), "HALFMONTH", types.DiscountTypeMonthsFree, 1)
	halfMonth.DiscountValue = decimal.NewFromFloat(1.5)
	_, err = s.service.CreateCoupon(s.GetContext(), halfMonth)
	s.True(ierr.IsValidation(err))
}
