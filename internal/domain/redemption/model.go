package redemption

import (
	"time"

	"github.com/assistly/billing/internal/types"
	"github.com/shopspring/decimal"
)

// Redemption is a successfully applied coupon
type Redemption struct {
	ID       string `db:"id" json:"id"`
	CouponID string `db:"coupon_id" json:"coupon_id"`
	UserID   string `db:"user_id" json:"user_id"`

	// Code is stored denormalized so history survives coupon deletion
	Code         string             `db:"code" json:"code"`
	DiscountType types.DiscountType `db:"discount_type" json:"discount_type"`

	OriginalAmount decimal.Decimal `db:"original_amount" json:"original_amount"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	FinalAmount    decimal.Decimal `db:"final_amount" json:"final_amount"`

	IPAddress         *string `db:"ip_address" json:"ip_address,omitempty"`
	DeviceFingerprint *string `db:"device_fingerprint" json:"device_fingerprint,omitempty"`

	Status     types.RedemptionStatus `db:"status" json:"status"`
	RedeemedAt time.Time              `db:"redeemed_at" json:"redeemed_at"`
}

// Attempt is one call to coupon validation, successful or not. Velocity limits count attempts.
type Attempt struct {
	ID        string  `db:"id" json:"id"`
	UserID    string  `db:"user_id" json:"user_id"`
	Code      string  `db:"code" json:"code"`
	IPAddress *string `db:"ip_address" json:"ip_address,omitempty"`

	AttemptedAt time.Time `db:"attempted_at" json:"attempted_at"`
}

func NewAttempt(userID, code, ip string, at time.Time) *Attempt {
	a := &Attempt{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REDEMPTION_ATTEMPT),
		UserID:      userID,
		Code:        code,
		AttemptedAt: at,
	}
	if ip != "" {
		a.IPAddress = &ip
	}
	return a
}
