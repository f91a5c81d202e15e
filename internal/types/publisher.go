package types

// EventType names a domain event. Topics are derived from it.
type EventType string

const (
	EventSubscriptionTierChanged EventType = "subscription.tier_changed"
	EventCouponRedeemed          EventType = "coupon.redeemed"
	EventFraudSignalDetected     EventType = "fraud.signal_detected"
)

// Topic returns the broker topic for the event, optionally namespaced by prefix
func (e EventType) Topic(prefix string) string {
	if prefix == "" {
		return string(e)
	}
	return prefix + "." + string(e)
}
