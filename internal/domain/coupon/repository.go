package coupon

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository loads coupons with their campaign, usage counter and rules attached
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	// GetByCode looks up an uppercased code and returns ErrNotFound when there is no such coupon
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	Get(ctx context.Context, id string) (*Coupon, error)

	// IncrementUsage adds one use to the coupon's counter, creating it when missing. It fails with
	// ErrInvalidOperation when the coupon already reached its MaxUses.
	IncrementUsage(ctx context.Context, couponID string) (*UsageLimits, error)

	// AddCampaignSpend adds amount to the campaign's spend-to-date
	AddCampaignSpend(ctx context.Context, campaignID string, amount decimal.Decimal) error
}
