package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/assistly/billing/internal/api/dto"
	v1 "github.com/assistly/billing/internal/api/v1"
	"github.com/assistly/billing/internal/domain/coupon"
	"github.com/assistly/billing/internal/domain/proration"
	"github.com/assistly/billing/internal/domain/subscription"
	"github.com/assistly/billing/internal/service"
	"github.com/assistly/billing/internal/testutil"
	"github.com/assistly/billing/internal/types"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// serverTime is the calculator clock, eleven days before the end of subs_1's period
var serverTime = time.Date(2023, 11, 20, 10, 30, 0, 0, time.UTC)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router *gin.Engine
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	cfg := s.GetConfig()
	calculator, err := service.NewCalculator(cfg)
	s.Require().NoError(err)
	calculator = calculator.WithClock(func() time.Time { return serverTime })

	stores := s.GetStores()
	params := service.NewServiceParams(
		s.GetLogger(), cfg, s.GetDB(), nil, s.GetMetrics(),
		calculator, service.NewCouponEngine(cfg),
		stores.SubscriptionRepo, stores.ProrationRepo, stores.CouponRepo,
		stores.RedemptionRepo, stores.FraudRepo, stores.UserRepo,
		s.GetPublisher(),
	)
	validation := service.NewCouponValidationService(params)

	s.router = NewRouter(Handlers{
		Health:       v1.NewHealthHandler(s.GetLogger()),
		Subscription: v1.NewSubscriptionHandler(service.NewProrationService(params), s.GetLogger()),
		Coupon:       v1.NewCouponHandler(service.NewCouponService(params, validation), validation, s.GetLogger()),
		Checkout:     v1.NewCheckoutHandler(service.NewCheckoutService(params, validation), s.GetLogger()),
	}, cfg, s.GetLogger())

	now := s.GetNow()
	s.Require().NoError(stores.SubscriptionRepo.Create(s.GetContext(), &subscription.Subscription{
		ID:                 "subs_1",
		UserID:             "user_1",
		Tier:               types.SubscriptionTierPro,
		BillingCycle:       types.BillingCycleMonthly,
		BasePriceUSD:       decimal.NewFromInt(19),
		CurrentPeriodStart: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		Status:             types.SubscriptionStatusActive,
	}))
	s.Require().NoError(stores.CouponRepo.Create(s.GetContext(), &coupon.Coupon{
		ID:            "coupon_1",
		Code:          "SUMMER20",
		Name:          "Summer",
		Type:          types.CouponTypeStandard,
		DiscountType:  types.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(20),
		ValidFrom:     now.AddDate(0, 0, -1),
		ValidUntil:    now.AddDate(0, 1, 0),
		IsActive:      true,
	}))
}

func (s *RouterSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())
}

func (s *RouterSuite) TestValidateCoupon() {
	w := s.do(http.MethodPost, "/v1/coupons/validate", map[string]any{
		"code":       "summer20",
		"user_id":    "user_1",
		"cart_total": "50",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.CouponValidationResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.True(resp.IsValid)
	s.Equal("SUMMER20", resp.Code)
	s.Equal("10.00", resp.Discount.DiscountAmount.StringFixed(2))
}

func (s *RouterSuite) TestValidateCoupon_RejectedIsBadRequest() {
	w := s.do(http.MethodPost, "/v1/coupons/validate", map[string]any{
		"code":       "NOSUCHCODE",
		"user_id":    "user_1",
		"cart_total": "50",
	})
	s.Require().Equal(http.StatusBadRequest, w.Code)

	var resp dto.CouponValidationResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.False(resp.IsValid)
	s.Equal([]types.CouponValidationErrorCode{types.CouponValidationErrorCodeNotFound}, resp.Errors)
}

func (s *RouterSuite) TestValidateCoupon_MissingFields() {
	w := s.do(http.MethodPost, "/v1/coupons/validate", map[string]any{"code": "SUMMER20"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestRedeemCoupon() {
	w := s.do(http.MethodPost, "/v1/coupons/redeem", map[string]any{
		"code":       "SUMMER20",
		"user_id":    "user_1",
		"cart_total": "100",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var resp dto.RedeemCouponResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.True(resp.Validation.IsValid)
	s.Require().NotNil(resp.Redemption)
	s.Equal("80.00", resp.Redemption.FinalAmount.StringFixed(2))
}

func (s *RouterSuite) TestValidateCoupon_TierComesFromSubscription() {
	now := s.GetNow()
	s.Require().NoError(s.GetStores().CouponRepo.Create(s.GetContext(), &coupon.Coupon{
		ID:              "coupon_max",
		Code:            "MAXONLY15",
		Name:            "Max only",
		Type:            types.CouponTypeStandard,
		DiscountType:    types.DiscountTypePercentage,
		DiscountValue:   decimal.NewFromInt(15),
		TierEligibility: []types.SubscriptionTier{types.SubscriptionTierProMax},
		ValidFrom:       now.AddDate(0, 0, -1),
		ValidUntil:      now.AddDate(0, 1, 0),
		IsActive:        true,
	}))

	// user_1 is on pro whatever the body claims
	w := s.do(http.MethodPost, "/v1/coupons/validate", map[string]any{
		"code":              "MAXONLY15",
		"user_id":           "user_1",
		"cart_total":        "50",
		"subscription_tier": "pro_max",
	})
	s.Require().Equal(http.StatusBadRequest, w.Code, w.Body.String())

	var resp dto.CouponValidationResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal([]types.CouponValidationErrorCode{types.CouponValidationErrorCodeTierNotEligible}, resp.Errors)
}

func (s *RouterSuite) TestProrationEndpoints() {
	w := s.do(http.MethodPost, "/v1/subscriptions/subs_1/proration-preview", map[string]any{
		"new_tier":       "pro_max",
		"reference_time": "2023-11-25T00:00:00Z",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var preview map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &preview))
	s.EqualValues(6, preview["days_remaining"])

	w = s.do(http.MethodPost, "/v1/subscriptions/subs_missing/proration-preview", map[string]any{
		"new_tier": "pro_max",
	})
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/v1/subscriptions/subs_1/tier-change", map[string]any{
		"new_tier": "pro_max",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/subscriptions/subs_1/proration-events", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var list dto.ListProrationEventsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	s.Equal(1, list.Total)
	s.Equal("11.00", list.Items[0].NetChargeUSD.StringFixed(2))
}

func (s *RouterSuite) TestTierChange_IgnoresPricingOverrides() {
	w := s.do(http.MethodPost, "/v1/subscriptions/subs_1/tier-change", map[string]any{
		"new_tier":                     "enterprise_max",
		"reference_time":               "2023-12-01T00:00:00Z",
		"current_tier_effective_price": "100000",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var event proration.Event
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &event))
	s.Equal(11, event.DaysRemaining)
	s.True(event.EffectiveAt.Equal(serverTime))
	s.True(event.NetChargeUSD.IsPositive())
	s.False(event.RawNetChargeUSD.IsNegative())
	s.Equal("6.97", event.UnusedCreditValueUSD.StringFixed(2))
}

func (s *RouterSuite) TestUpgradePreview() {
	w := s.do(http.MethodPost, "/v1/checkout/upgrade-preview", map[string]any{
		"subscription_id": "subs_1",
		"new_tier":        "pro_max",
		"coupon_code":     "SUMMER20",
		"reference_time":  "2023-11-20T10:30:00Z",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.UpgradePreviewResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.True(resp.CouponApplied)
	s.Equal("7.41", resp.Proration.NetChargeUSD.StringFixed(2))
}

func (s *RouterSuite) TestApplyUpgrade() {
	w := s.do(http.MethodPost, "/v1/checkout/upgrade", map[string]any{
		"subscription_id": "subs_1",
		"new_tier":        "pro_max",
		"coupon_code":     "SUMMER20",
		"reference_time":  "2023-12-01T00:00:00Z",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var resp dto.UpgradeResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.True(resp.CouponApplied)
	s.Require().NotNil(resp.Event)
	s.Equal("7.41", resp.Event.NetChargeUSD.StringFixed(2))
	s.Require().NotNil(resp.Redemption)
	s.Equal("14.38", resp.Redemption.FinalAmount.StringFixed(2))
}

func (s *RouterSuite) TestApplyUpgrade_RejectedCouponIsBadRequest() {
	w := s.do(http.MethodPost, "/v1/checkout/upgrade", map[string]any{
		"subscription_id": "subs_1",
		"new_tier":        "pro_max",
		"coupon_code":     "NOSUCHCODE",
	})
	s.Require().Equal(http.StatusBadRequest, w.Code, w.Body.String())

	var resp dto.UpgradeResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Nil(resp.Event)
	s.Equal([]types.CouponValidationErrorCode{types.CouponValidationErrorCodeNotFound}, resp.Coupon.Errors)

	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "subs_1")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionTierPro, sub.Tier)
}
