package service

import (
	"time"

	"github.com/assistly/billing/internal/domain/coupon"
	"github.com/assistly/billing/internal/domain/subscription"
	"github.com/assistly/billing/internal/testutil"
	"github.com/assistly/billing/internal/types"
	"github.com/shopspring/decimal"
)

// tierChangeTime is the calculator clock in service tests, eleven days before the end of
// proMonthlySubscription's period
var tierChangeTime = time.Date(2023, 11, 20, 10, 30, 0, 0, time.UTC)

// newTestServiceParams wires services to the suite's in-memory stores. Sentry stays nil, which disables it.
func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	calculator, err := NewCalculator(s.GetConfig())
	if err != nil {
		s.T().Fatalf("failed to create calculator: %v", err)
	}
	calculator = calculator.WithClock(func() time.Time { return tierChangeTime })

	stores := s.GetStores()
	return NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		nil,
		s.GetMetrics(),
		calculator,
		NewCouponEngine(s.GetConfig()),
		stores.SubscriptionRepo,
		stores.ProrationRepo,
		stores.CouponRepo,
		stores.RedemptionRepo,
		stores.FraudRepo,
		stores.UserRepo,
		s.GetPublisher(),
	)
}

func proMonthlySubscription(id, userID string) *subscription.Subscription {
	return &subscription.Subscription{
		ID:                 id,
		UserID:             userID,
		Tier:               types.SubscriptionTierPro,
		BillingCycle:       types.BillingCycleMonthly,
		BasePriceUSD:       decimal.NewFromInt(19),
		CurrentPeriodStart: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		Status:             types.SubscriptionStatusActive,
		CreatedAt:          time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:          time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
	}
}

func activeCoupon(now time.Time, code string, discountType types.DiscountType, value int64) *coupon.Coupon {
	return &coupon.Coupon{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_COUPON),
		Code:           code,
		Name:           code,
		Type:           types.CouponTypeStandard,
		DiscountType:   discountType,
		DiscountValue:  decimal.NewFromInt(value),
		MaxUsesPerUser: 1,
		ValidFrom:      now.AddDate(0, 0, -1),
		ValidUntil:     now.AddDate(0, 1, 0),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
