package pricing

import (
	"testing"

	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_PriceFor(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name     string
		tier     types.SubscriptionTier
		cycle    types.BillingCycle
		expected int64
	}{
		{name: "pro_monthly", tier: types.SubscriptionTierPro, cycle: types.BillingCycleMonthly, expected: 19},
		{name: "pro_annual", tier: types.SubscriptionTierPro, cycle: types.BillingCycleAnnual, expected: 228},
		{name: "pro_max_annual", tier: types.SubscriptionTierProMax, cycle: types.BillingCycleAnnual, expected: 588},
		{name: "enterprise_max_monthly", tier: types.SubscriptionTierEnterpriseMax, cycle: types.BillingCycleMonthly, expected: 499},
		{name: "free", tier: types.SubscriptionTierFree, cycle: types.BillingCycleAnnual, expected: 0},
		{name: "perpetual", tier: types.SubscriptionTierPerpetual, cycle: types.BillingCycleMonthly, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := table.PriceFor(tt.tier, tt.cycle)
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(tt.expected).Equal(price), "got %s", price)
		})
	}
}

func TestTable_UnknownTierAndCycle(t *testing.T) {
	table := DefaultTable()

	_, err := table.PriceFor("platinum", types.BillingCycleMonthly)
	assert.True(t, ierr.IsValidation(err))

	_, err = table.PriceFor(types.SubscriptionTierPro, "weekly")
	assert.True(t, ierr.IsValidation(err))
}

func TestNewTable_Overrides(t *testing.T) {
	table, err := NewTable(map[string]float64{"pro": 15.5})
	require.NoError(t, err)

	price, err := table.MonthlyPrice(types.SubscriptionTierPro)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(15.5).Equal(price))

	// untouched tiers keep their defaults
	price, err = table.MonthlyPrice(types.SubscriptionTierProMax)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(49).Equal(price))

	_, err = NewTable(map[string]float64{"gold": 10})
	assert.Error(t, err)

	_, err = NewTable(map[string]float64{"pro": -1})
	assert.Error(t, err)
}
