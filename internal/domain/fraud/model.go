// Package fraud holds fraud signals raised while validating coupons and the records they are persisted as.
package fraud

import (
	"time"

	"github.com/assistly/billing/internal/types"
)

// Signal is raised by a heuristic during coupon validation. Raising a signal never writes anything;
// the caller decides whether to persist it as a Detection.
type Signal struct {
	Type     types.FraudDetectionType `json:"type"`
	Severity types.FraudSeverity      `json:"severity"`

	// Flagged signals need review. Unflagged ones are logged only.
	Flagged bool `json:"flagged"`

	UserID    string         `json:"user_id"`
	CouponID  string         `json:"coupon_id,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	Details   map[string]any `json:"details,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

// Detection is a persisted fraud signal
type Detection struct {
	ID       string                   `db:"id" json:"id"`
	UserID   string                   `db:"user_id" json:"user_id"`
	CouponID *string                  `db:"coupon_id" json:"coupon_id,omitempty"`
	Type     types.FraudDetectionType `db:"detection_type" json:"detection_type"`
	Severity types.FraudSeverity      `db:"severity" json:"severity"`
	Flagged  bool                     `db:"flagged" json:"flagged"`
	Reviewed bool                     `db:"reviewed" json:"reviewed"`

	IPAddress *string        `db:"ip_address" json:"ip_address,omitempty"`
	Details   map[string]any `db:"-" json:"details,omitempty"`

	DetectedAt time.Time `db:"detected_at" json:"detected_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// NewDetection converts a signal into an unreviewed record
func NewDetection(s *Signal) *Detection {
	d := &Detection{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FRAUD_DETECTION),
		UserID:     s.UserID,
		Type:       s.Type,
		Severity:   s.Severity,
		Flagged:    s.Flagged,
		Details:    s.Details,
		DetectedAt: s.DetectedAt,
		CreatedAt:  time.Now().UTC(),
	}
	if s.CouponID != "" {
		d.CouponID = &s.CouponID
	}
	if s.IPAddress != "" {
		d.IPAddress = &s.IPAddress
	}
	return d
}

// IsBlocking reports whether the record blocks further redemptions of its coupon by its user
func (d *Detection) IsBlocking() bool {
	return d.Severity == types.FraudSeverityCritical && !d.Reviewed
}
