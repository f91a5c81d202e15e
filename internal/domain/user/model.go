package user

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Profile is the slice of a user account that coupon rules can inspect
type Profile struct {
	ID    string `db:"id" json:"id"`
	Email string `db:"email" json:"email"`

	// PriorSubscriptions counts paid subscriptions the user has ever held
	PriorSubscriptions int `db:"prior_subscriptions" json:"prior_subscriptions"`

	LastRefundAt     *time.Time      `db:"last_refund_at" json:"last_refund_at,omitempty"`
	HasPaymentMethod bool            `db:"has_payment_method" json:"has_payment_method"`
	CreditBalance    decimal.Decimal `db:"credit_balance" json:"credit_balance"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EmailDomain returns the lowercased part of the email after the last @, or "" when there is none
func (p *Profile) EmailDomain() string {
	at := strings.LastIndex(p.Email, "@")
	if at < 0 || at == len(p.Email)-1 {
		return ""
	}
	return strings.ToLower(p.Email[at+1:])
}

// IsFirstTimeUser reports whether the user never held a subscription
func (p *Profile) IsFirstTimeUser() bool {
	return p.PriorSubscriptions == 0
}

// RefundedSince reports whether the user's last refund happened at or after since
func (p *Profile) RefundedSince(since time.Time) bool {
	return p.LastRefundAt != nil && !p.LastRefundAt.Before(since)
}
