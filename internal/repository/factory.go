package repository

import (
	"github.com/assistly/billing/internal/cache"
	"github.com/assistly/billing/internal/domain/coupon"
	"github.com/assistly/billing/internal/domain/fraud"
	"github.com/assistly/billing/internal/domain/proration"
	"github.com/assistly/billing/internal/domain/redemption"
	"github.com/assistly/billing/internal/domain/subscription"
	"github.com/assistly/billing/internal/domain/user"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/postgres"
	postgresRepo "github.com/assistly/billing/internal/repository/postgres"
)

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewProrationEventRepository(db *postgres.DB, logger *logger.Logger) proration.Repository {
	return postgresRepo.NewProrationEventRepository(db, logger)
}

func NewCouponRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) coupon.Repository {
	return postgresRepo.NewCouponRepository(db, logger, cache)
}

func NewRedemptionRepository(db *postgres.DB, logger *logger.Logger) redemption.Repository {
	return postgresRepo.NewRedemptionRepository(db, logger)
}

func NewFraudRepository(db *postgres.DB, logger *logger.Logger) fraud.Repository {
	return postgresRepo.NewFraudRepository(db, logger)
}

func NewUserRepository(db *postgres.DB, logger *logger.Logger) user.Repository {
	return postgresRepo.NewUserRepository(db, logger)
}
