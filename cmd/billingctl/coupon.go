package main

import (
	"fmt"

	"github.com/assistly/billing/internal/domain/coupon"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/types"
	"github.com/spf13/cobra"
)

func newCouponCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coupon",
		Short: "Coupon calculations and code generation",
	}
	cmd.AddCommand(newCouponDiscountCmd(), newCouponGenerateCmd())
	return cmd
}

func newCouponDiscountCmd() *cobra.Command {
	var discountType, value, amount string

	cmd := &cobra.Command{
		Use:     "discount",
		Short:   "Show what a discount takes off an amount",
		Example: "  billingctl coupon discount --type percentage --value 20 --amount 17.97",
		RunE: func(cmd *cobra.Command, args []string) error {
			dt := types.DiscountType(discountType)
			if err := dt.Validate(); err != nil {
				return err
			}
			v, err := parseDecimal("value", value)
			if err != nil {
				return err
			}
			a, err := parseDecimal("amount", amount)
			if err != nil {
				return err
			}

			c := &coupon.Coupon{
				Type:          types.CouponTypeStandard,
				DiscountType:  dt,
				DiscountValue: v,
			}
			return printJSON(cmd, coupon.CalculateDiscount(c, a))
		},
	}

	cmd.Flags().StringVar(&discountType, "type", "", "discount type: percentage, fixed_amount, credits or months_free")
	cmd.Flags().StringVar(&value, "value", "", "discount value")
	cmd.Flags().StringVar(&amount, "amount", "0", "amount the discount applies to")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newCouponGenerateCmd() *cobra.Command {
	var (
		prefix string
		count  int
	)

	cmd := &cobra.Command{
		Use:     "generate",
		Short:   "Generate random coupon codes",
		Example: "  billingctl coupon generate --prefix SPRING --count 10",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return ierr.NewError("count must be at least 1").
					WithHint("--count must be at least 1").
					Mark(ierr.ErrValidation)
			}
			for i := 0; i < count; i++ {
				code, err := coupon.GenerateCode(prefix)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "code prefix, letters and digits only")
	cmd.Flags().IntVar(&count, "count", 1, "number of codes")
	return cmd
}
