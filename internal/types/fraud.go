package types

// FraudDetectionType is the heuristic that produced a fraud signal
type FraudDetectionType string

const (
	FraudDetectionTypeVelocityAbuse FraudDetectionType = "velocity_abuse"
	FraudDetectionTypeIPSwitching   FraudDetectionType = "ip_switching"
)

// FraudSeverity ranks fraud signals. Only critical unreviewed records block redemption.
type FraudSeverity string

const (
	FraudSeverityLow      FraudSeverity = "low"
	FraudSeverityMedium   FraudSeverity = "medium"
	FraudSeverityHigh     FraudSeverity = "high"
	FraudSeverityCritical FraudSeverity = "critical"
)
