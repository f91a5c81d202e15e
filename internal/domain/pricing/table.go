// Package pricing resolves list prices for subscription tiers.
package pricing

import (
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/types"
	"github.com/shopspring/decimal"
)

// MonthsPerYear converts a monthly list price to the annual one. Annual plans carry no built-in discount.
const MonthsPerYear = 12

// Table maps each tier to its canonical monthly USD list price
type Table map[types.SubscriptionTier]decimal.Decimal

// DefaultTable returns the standard list prices
func DefaultTable() Table {
	return Table{
		types.SubscriptionTierFree:          decimal.Zero,
		types.SubscriptionTierPro:           decimal.NewFromInt(19),
		types.SubscriptionTierProMax:        decimal.NewFromInt(49),
		types.SubscriptionTierEnterprisePro: decimal.NewFromInt(149),
		types.SubscriptionTierEnterpriseMax: decimal.NewFromInt(499),
		// perpetual licenses are paid once and never prorated
		types.SubscriptionTierPerpetual: decimal.Zero,
	}
}

// NewTable starts from DefaultTable and applies overrides keyed by tier name
func NewTable(monthlyUSD map[string]float64) (Table, error) {
	table := DefaultTable()
	for name, price := range monthlyUSD {
		tier := types.SubscriptionTier(name)
		if err := tier.Validate(); err != nil {
			return nil, err
		}
		amount := decimal.NewFromFloat(price)
		if amount.IsNegative() {
			return nil, ierr.NewErrorf("negative price for tier %s", name).
				WithHint("Tier prices cannot be negative").
				Mark(ierr.ErrValidation)
		}
		table[tier] = amount
	}
	return table, nil
}

// MonthlyPrice returns the monthly list price of tier
func (t Table) MonthlyPrice(tier types.SubscriptionTier) (decimal.Decimal, error) {
	price, ok := t[tier]
	if !ok {
		return decimal.Zero, ierr.NewErrorf("no price configured for tier %s", tier).
			WithHint("Unknown subscription tier").
			WithReportableDetails(map[string]any{"tier": tier}).
			Mark(ierr.ErrValidation)
	}
	return price, nil
}

// PriceFor returns the list price of tier for one full billing cycle
func (t Table) PriceFor(tier types.SubscriptionTier, cycle types.BillingCycle) (decimal.Decimal, error) {
	monthly, err := t.MonthlyPrice(tier)
	if err != nil {
		return decimal.Zero, err
	}

	switch cycle {
	case types.BillingCycleMonthly:
		return monthly, nil
	case types.BillingCycleAnnual:
		return monthly.Mul(decimal.NewFromInt(MonthsPerYear)), nil
	default:
		return decimal.Zero, cycle.Validate()
	}
}
