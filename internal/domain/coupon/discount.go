package coupon

import (
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountAmount returns how much of base a discount removes, unrounded and never more than base.
// Credits and months_free leave prices untouched and always return zero.
func DiscountAmount(discountType types.DiscountType, value, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() || !value.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch discountType {
	case types.DiscountTypePercentage:
		amount = base.Mul(value).Div(hundred)
	case types.DiscountTypeFixedAmount:
		amount = value
	default:
		return decimal.Zero
	}

	return decimal.Min(amount, base)
}

// CalculateDiscount applies c to originalAmount. Amounts are rounded to cents before the final amount
// is derived, so DiscountAmount + FinalAmount always equals OriginalAmount for price-reducing coupons.
func CalculateDiscount(c *Coupon, originalAmount decimal.Decimal) *DiscountCalculation {
	original := types.RoundUSD(originalAmount)
	discount := types.RoundUSD(DiscountAmount(c.DiscountType, c.DiscountValue, originalAmount))

	calc := &DiscountCalculation{
		CouponType:     c.Type,
		DiscountType:   c.DiscountType,
		OriginalAmount: original,
		DiscountAmount: discount,
		FinalAmount:    types.FloorAtZero(original.Sub(discount)),
	}

	switch c.DiscountType {
	case types.DiscountTypePercentage:
		calc.Percentage = lo.ToPtr(c.DiscountValue)
	case types.DiscountTypeFixedAmount:
		calc.FixedAmount = lo.ToPtr(c.DiscountValue)
	case types.DiscountTypeCredits:
		calc.CreditAmount = lo.ToPtr(c.DiscountValue)
	case types.DiscountTypeMonthsFree:
		calc.BonusMonths = lo.ToPtr(int(c.DiscountValue.IntPart()))
	}

	return calc
}
