package service

import (
	"testing"

	"github.com/assistly/billing/internal/domain/coupon"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/testutil"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CouponValidationServiceSuite struct {
	testutil.BaseServiceTestSuite
	service CouponValidationService
	coupon  *coupon.Coupon
}

func TestCouponValidationService(t *testing.T) {
	suite.Run(t, new(CouponValidationServiceSuite))
}

func (s *CouponValidationServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewCouponValidationService(newTestServiceParams(&s.BaseServiceTestSuite))

	s.coupon = activeCoupon(s.GetNow(), "SUMMER20", types.DiscountTypePercentage, 20)
	s.NoError(s.GetStores().CouponRepo.Create(s.GetContext(), s.coupon))
}

func (s *CouponValidationServiceSuite) validate(code, userID string) (*coupon.ValidationResult, error) {
	return s.service.ValidateCoupon(s.GetContext(), ValidateCouponRequest{
		Code:   code,
		UserID: userID,
		Context: coupon.ValidationContext{
			CartTotal:        decimal.NewFromInt(100),
			SubscriptionTier: types.SubscriptionTierPro,
			IPAddress:        "203.0.113.7",
		},
	})
}

func (s *CouponValidationServiceSuite) TestValidateCoupon_Valid() {
	result, err := s.validate("  summer20 ", "user_1")
	s.Require().NoError(err)

	s.True(result.IsValid)
	s.Empty(result.Errors)
	s.Equal(s.coupon.ID, result.Coupon.ID)
	s.Equal("20.00", result.Discount.DiscountAmount.StringFixed(2))
	s.Equal("80.00", result.Discount.FinalAmount.StringFixed(2))

	attempts := s.GetStores().RedemptionRepo.Attempts(s.GetContext(), "user_1")
	s.Require().Len(attempts, 1)
	s.Equal("SUMMER20", attempts[0].Code)
}

func (s *CouponValidationServiceSuite) TestValidateCoupon_NotFound() {
	result, err := s.validate("WINTER99", "user_1")
	s.Require().NoError(err)

	s.False(result.IsValid)
	s.Equal(types.CouponValidationErrorCodeNotFound, result.ErrorCode())
	s.Nil(result.Coupon)
	s.Len(s.GetStores().RedemptionRepo.Attempts(s.GetContext(), "user_1"), 1)
}

func (s *CouponValidationServiceSuite) TestValidateCoupon_MissingUser() {
	result, err := s.validate("SUMMER20", "")
	s.Nil(result)
	s.True(ierr.IsValidation(err))
}

func (s *CouponValidationServiceSuite) TestValidateCoupon_TierFromCurrentSubscription() {
	ctx := s.GetContext()
	proOnly := activeCoupon(s.GetNow(), "PROONLY15", types.DiscountTypePercentage, 15)
	proOnly.TierEligibility = []types.SubscriptionTier{types.SubscriptionTierPro}
	s.Require().NoError(s.GetStores().CouponRepo.Create(ctx, proOnly))

	free := proMonthlySubscription("subs_free", "user_free")
	free.Tier = types.SubscriptionTierFree
	free.BasePriceUSD = decimal.Zero
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, free))

	cancelled := proMonthlySubscription("subs_cancelled", "user_cancelled")
	cancelled.Status = types.SubscriptionStatusCancelled
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, cancelled))

	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, proMonthlySubscription("subs_pro", "user_pro")))

	// every request claims the pro tier
	tests := []struct {
		name      string
		userID    string
		wantValid bool
	}{
		{name: "free_subscription", userID: "user_free"},
		{name: "no_subscription", userID: "user_none"},
		{name: "cancelled_subscription", userID: "user_cancelled"},
		{name: "pro_subscription", userID: "user_pro", wantValid: true},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			result, err := s.validate("PROONLY15", tt.userID)
			s.Require().NoError(err)
			s.Equal(tt.wantValid, result.IsValid)
			if !tt.wantValid {
				s.Equal(types.CouponValidationErrorCodeTierNotEligible, result.ErrorCode())
			}
		})
	}
}

func (s *CouponValidationServiceSuite) TestValidateCoupon_GlobalLimitReached() {
	limited := activeCoupon(s.GetNow(), "LIMITED5", types.DiscountTypeFixedAmount, 5)
	limited.MaxUses = lo.ToPtr(2)
	s.Require().NoError(s.GetStores().CouponRepo.Create(s.GetContext(), limited))
	s.GetStores().CouponRepo.SetTotalUses(limited.ID, 2)

	result, err := s.validate("LIMITED5", "user_1")
	s.Require().NoError(err)
	s.Equal(types.CouponValidationErrorCodeMaxUsesExceeded, result.ErrorCode())
}

func (s *CouponValidationServiceSuite) TestValidateCoupon_VelocityLimit() {
	for i := 0; i < 2; i++ {
		result, err := s.validate("SUMMER20", "user_velocity")
		s.Require().NoError(err)
		s.True(result.IsValid, "attempt %d", i+1)
	}

	result, err := s.validate("SUMMER20", "user_velocity")
	s.Require().NoError(err)
	s.False(result.IsValid)
	s.Equal(types.CouponValidationErrorCodeVelocityLimitExceeded, result.ErrorCode())
	s.Require().Len(result.FraudSignals, 1)

	detections := s.GetStores().FraudRepo.All(s.GetContext())
	s.Require().Len(detections, 1)
	s.Equal(types.FraudDetectionTypeVelocityAbuse, detections[0].Type)
	s.Equal(types.FraudSeverityHigh, detections[0].Severity)
	s.True(detections[0].Flagged)
	s.False(detections[0].Reviewed)
	s.Equal("user_velocity", detections[0].UserID)

	published := s.GetPublisher().EventsOfType(types.EventFraudSignalDetected)
	s.Require().Len(published, 1)
	s.Equal("user_velocity", published[0].Key)

	// other users are unaffected
	other, err := s.validate("SUMMER20", "user_other")
	s.Require().NoError(err)
	s.True(other.IsValid)
}

func (s *CouponValidationServiceSuite) TestValidateCoupon_InfrastructureFailure() {
	s.GetStores().CouponRepo.FailWith(ierr.NewError("connection refused").Mark(ierr.ErrDatabase))

	result, err := s.validate("SUMMER20", "user_1")
	s.Require().Error(err)
	s.True(ierr.IsDatabase(err))
	s.Require().NotNil(result)
	s.False(result.IsValid)
	s.Equal([]types.CouponValidationErrorCode{types.CouponValidationErrorCodeValidationError}, result.Errors)
}
