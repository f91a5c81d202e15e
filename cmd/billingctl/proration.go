package main

import (
	"time"

	"github.com/assistly/billing/internal/config"
	"github.com/assistly/billing/internal/domain/pricing"
	"github.com/assistly/billing/internal/domain/proration"
	"github.com/assistly/billing/internal/domain/subscription"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type prorationFlags struct {
	from           string
	to             string
	cycle          string
	periodStart    string
	periodEnd      string
	at             string
	effectivePrice string
	couponType     string
	couponValue    string
}

func newProrationCmd(loadConfig func() *config.Configuration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proration",
		Short: "Proration calculations",
	}

	var f prorationFlags
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Compute the charge for a mid-cycle tier change",
		Example: `  billingctl proration preview --from pro --to pro_max \
    --period-start 2023-11-01T00:00:00Z --period-end 2023-12-01T00:00:00Z --at 2023-11-20T10:30:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			calc, err := runProrationPreview(loadConfig(), f)
			if err != nil {
				return err
			}
			return printJSON(cmd, calc)
		},
	}

	flags := preview.Flags()
	flags.StringVar(&f.from, "from", "", "current tier")
	flags.StringVar(&f.to, "to", "", "new tier")
	flags.StringVar(&f.cycle, "cycle", string(types.BillingCycleMonthly), "billing cycle: monthly or annual")
	flags.StringVar(&f.periodStart, "period-start", "", "current period start, RFC3339")
	flags.StringVar(&f.periodEnd, "period-end", "", "current period end, RFC3339")
	flags.StringVar(&f.at, "at", "", "effective time of the change, RFC3339; defaults to now")
	flags.StringVar(&f.effectivePrice, "effective-price", "", "price the user actually pays for the current tier")
	flags.StringVar(&f.couponType, "coupon-type", "", "discount type applied to the new tier: percentage or fixed_amount")
	flags.StringVar(&f.couponValue, "coupon-value", "", "discount value for --coupon-type")
	_ = preview.MarkFlagRequired("from")
	_ = preview.MarkFlagRequired("to")
	_ = preview.MarkFlagRequired("period-start")
	_ = preview.MarkFlagRequired("period-end")

	cmd.AddCommand(preview)
	return cmd
}

func runProrationPreview(cfg *config.Configuration, f prorationFlags) (*proration.Calculation, error) {
	prices, err := pricing.NewTable(cfg.Pricing.MonthlyUSD)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Proration.Location()
	if err != nil {
		return nil, err
	}

	start, err := parseTime("period-start", f.periodStart)
	if err != nil {
		return nil, err
	}
	end, err := parseTime("period-end", f.periodEnd)
	if err != nil {
		return nil, err
	}

	tier := types.SubscriptionTier(f.from)
	cycle := types.BillingCycle(f.cycle)
	basePrice, err := prices.PriceFor(tier, cycle)
	if err != nil {
		return nil, err
	}

	sub := &subscription.Subscription{
		ID:                 "cli",
		Tier:               tier,
		BillingCycle:       cycle,
		BasePriceUSD:       basePrice,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		Status:             types.SubscriptionStatusActive,
	}

	var opts proration.Options
	if f.at != "" {
		if opts.ReferenceTime, err = parseTime("at", f.at); err != nil {
			return nil, err
		}
	}
	if f.effectivePrice != "" {
		price, err := parseDecimal("effective-price", f.effectivePrice)
		if err != nil {
			return nil, err
		}
		opts.CurrentTierEffectivePrice = lo.ToPtr(price)
	}
	if f.couponType != "" {
		value, err := parseDecimal("coupon-value", f.couponValue)
		if err != nil {
			return nil, err
		}
		opts.NewTierCoupon = &proration.CouponTerms{
			Code:          "CLI",
			DiscountType:  types.DiscountType(f.couponType),
			DiscountValue: value,
		}
	}

	return proration.NewCalculator(prices, loc).Calculate(sub, types.SubscriptionTier(f.to), opts)
}

func parseTime(flag, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHintf("--%s must be an RFC3339 timestamp", flag).
			Mark(ierr.ErrValidation)
	}
	return t, nil
}

func parseDecimal(flag, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, ierr.WithError(err).
			WithHintf("--%s must be a decimal number", flag).
			Mark(ierr.ErrValidation)
	}
	return d, nil
}
