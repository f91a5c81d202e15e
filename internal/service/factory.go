package service

import (
	"github.com/assistly/billing/internal/config"
	"github.com/assistly/billing/internal/domain/coupon"
	"github.com/assistly/billing/internal/domain/fraud"
	"github.com/assistly/billing/internal/domain/pricing"
	"github.com/assistly/billing/internal/domain/proration"
	"github.com/assistly/billing/internal/domain/redemption"
	"github.com/assistly/billing/internal/domain/subscription"
	"github.com/assistly/billing/internal/domain/user"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/metrics"
	"github.com/assistly/billing/internal/postgres"
	"github.com/assistly/billing/internal/publisher"
	"github.com/assistly/billing/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger  *logger.Logger
	Config  *config.Configuration
	DB      postgres.IClient
	Sentry  *sentry.Service
	Metrics *metrics.Metrics

	// Engines
	Calculator   *proration.Calculator
	CouponEngine *coupon.Engine

	// Repositories
	SubRepo        subscription.Repository
	ProrationRepo  proration.Repository
	CouponRepo     coupon.Repository
	RedemptionRepo redemption.Repository
	FraudRepo      fraud.Repository
	UserRepo       user.Repository

	// Publishers
	EventPublisher publisher.EventPublisher
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	sentryService *sentry.Service,
	metrics *metrics.Metrics,
	calculator *proration.Calculator,
	couponEngine *coupon.Engine,
	subRepo subscription.Repository,
	prorationRepo proration.Repository,
	couponRepo coupon.Repository,
	redemptionRepo redemption.Repository,
	fraudRepo fraud.Repository,
	userRepo user.Repository,
	eventPublisher publisher.EventPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:         logger,
		Config:         config,
		DB:             db,
		Sentry:         sentryService,
		Metrics:        metrics,
		Calculator:     calculator,
		CouponEngine:   couponEngine,
		SubRepo:        subRepo,
		ProrationRepo:  prorationRepo,
		CouponRepo:     couponRepo,
		RedemptionRepo: redemptionRepo,
		FraudRepo:      fraudRepo,
		UserRepo:       userRepo,
		EventPublisher: eventPublisher,
	}
}

// NewCalculator builds the proration calculator from the pricing and proration config sections
func NewCalculator(cfg *config.Configuration) (*proration.Calculator, error) {
	prices, err := pricing.NewTable(cfg.Pricing.MonthlyUSD)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Proration.Location()
	if err != nil {
		return nil, err
	}
	return proration.NewCalculator(prices, loc), nil
}

// NewCouponEngine builds the validation pipeline from the coupon config section
func NewCouponEngine(cfg *config.Configuration) *coupon.Engine {
	return coupon.NewEngine(coupon.Config{
		VelocityMaxAttempts: cfg.Coupon.VelocityMaxAttempts,
		VelocityWindow:      cfg.Coupon.VelocityWindow,
		MaxDistinctIPs:      cfg.Coupon.MaxDistinctIPs,
		RefundLookbackDays:  cfg.Coupon.RefundLookbackDays,
	})
}
