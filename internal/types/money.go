package types

import (
	"github.com/shopspring/decimal"
)

// USDPrecision is the number of decimal places USD amounts are reported with
const USDPrecision int32 = 2

// RoundUSD rounds half away from zero to cents. Never use RoundBank for customer facing amounts.
func RoundUSD(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(USDPrecision)
}

// FloorAtZero returns amount, or zero when amount is negative
func FloorAtZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
