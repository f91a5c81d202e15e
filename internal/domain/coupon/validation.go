package coupon

import (
	"time"

	"github.com/assistly/billing/internal/domain/fraud"
	"github.com/assistly/billing/internal/domain/user"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ValidationContext describes the request a coupon is being validated for
type ValidationContext struct {
	CartTotal         decimal.Decimal
	// SubscriptionTier is the tier of the user's current subscription, free when there is none.
	// The validation service fills it from storage.
	SubscriptionTier  types.SubscriptionTier
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
}

// UserHistory is the redemption and fraud history of the validating user, loaded before validation
type UserHistory struct {
	// SuccessfulRedemptions counts the user's successful redemptions of this coupon
	SuccessfulRedemptions int
	// AttemptsInWindow counts the user's validation attempts across all coupons inside the velocity window,
	// including the attempt being validated
	AttemptsInWindow int
	// DistinctIPs are the IP addresses of the user's past successful redemptions
	DistinctIPs []string
	// UnreviewedCriticalFlags counts unreviewed critical fraud records for this coupon and user
	UnreviewedCriticalFlags int
	// Profile is nil when the user has no profile on file
	Profile *user.Profile
}

func (h UserHistory) profile() *user.Profile {
	if h.Profile == nil {
		return &user.Profile{}
	}
	return h.Profile
}

// ValidationInput is everything one validation needs. Coupon is nil when the code matched nothing.
type ValidationInput struct {
	Coupon  *Coupon
	UserID  string
	Context ValidationContext
	History UserHistory
	// Now defaults to the current time
	Now time.Time
}

// ValidationResult is the verdict of the pipeline. Errors holds at most one code: the first failing step.
type ValidationResult struct {
	IsValid  bool                              `json:"is_valid"`
	Errors   []types.CouponValidationErrorCode `json:"errors"`
	Coupon   *Coupon                           `json:"coupon,omitempty"`
	Discount *DiscountCalculation              `json:"discount,omitempty"`

	// FraudSignals raised by the steps that ran. Persisting them is the caller's job.
	FraudSignals []*fraud.Signal `json:"fraud_signals,omitempty"`
}

// ErrorCode returns the failing code, or "" for a valid result
func (r *ValidationResult) ErrorCode() types.CouponValidationErrorCode {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0]
}

// InfrastructureFailure is the result reported when the input could not be loaded
func InfrastructureFailure() *ValidationResult {
	return &ValidationResult{
		Errors: []types.CouponValidationErrorCode{types.CouponValidationErrorCodeValidationError},
	}
}

// Config tunes the fraud heuristics
type Config struct {
	VelocityMaxAttempts int
	VelocityWindow      time.Duration
	MaxDistinctIPs      int
	RefundLookbackDays  int
}

func DefaultConfig() Config {
	return Config{
		VelocityMaxAttempts: 3,
		VelocityWindow:      time.Hour,
		MaxDistinctIPs:      5,
		RefundLookbackDays:  90,
	}
}

// stepResult is what one pipeline step decides. A step may raise a signal whether or not it passes.
type stepResult struct {
	passed bool
	code   types.CouponValidationErrorCode
	signal *fraud.Signal
}

func pass() stepResult {
	return stepResult{passed: true}
}

func fail(code types.CouponValidationErrorCode) stepResult {
	return stepResult{code: code}
}

type step struct {
	name  string
	check func(in *ValidationInput, now time.Time) stepResult
}

// Engine runs the coupon validation pipeline. It holds no mutable state and is safe for concurrent use
// once rules are registered.
type Engine struct {
	cfg   Config
	rules map[types.ValidationRuleType]RuleEvaluator
	steps []step
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		cfg:   cfg,
		rules: defaultRules(cfg),
	}

	// order matters: the fraud steps at the end raise signals and must only run for otherwise valid coupons
	e.steps = []step{
		{name: "exists", check: e.checkExists},
		{name: "is_active", check: e.checkIsActive},
		{name: "validity_period", check: e.checkValidityPeriod},
		{name: "tier_eligibility", check: e.checkTierEligibility},
		{name: "max_uses", check: e.checkMaxUses},
		{name: "max_uses_per_user", check: e.checkMaxUsesPerUser},
		{name: "campaign_budget", check: e.checkCampaignBudget},
		{name: "min_purchase_amount", check: e.checkMinPurchaseAmount},
		{name: "custom_rules", check: e.checkCustomRules},
		{name: "fraud_flags", check: e.checkFraudFlags},
		{name: "redemption_velocity", check: e.checkRedemptionVelocity},
		{name: "device_fingerprint", check: e.checkDeviceFingerprint},
	}
	return e
}

// Config returns the heuristics configuration the engine was built with
func (e *Engine) Config() Config {
	return e.cfg
}

// RegisterRule installs or replaces the evaluator for a custom rule type
func (e *Engine) RegisterRule(ruleType types.ValidationRuleType, eval RuleEvaluator) {
	e.rules[ruleType] = eval
}

// Validate runs every step in order and stops at the first failure.
// On success the discount is computed against the cart total.
func (e *Engine) Validate(in *ValidationInput) *ValidationResult {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	result := &ValidationResult{Coupon: in.Coupon}
	for _, s := range e.steps {
		res := s.check(in, now)
		if res.signal != nil {
			result.FraudSignals = append(result.FraudSignals, res.signal)
		}
		if !res.passed {
			result.Errors = []types.CouponValidationErrorCode{res.code}
			return result
		}
	}

	result.IsValid = true
	result.Errors = []types.CouponValidationErrorCode{}
	result.Discount = CalculateDiscount(in.Coupon, in.Context.CartTotal)
	return result
}

func (e *Engine) checkExists(in *ValidationInput, _ time.Time) stepResult {
	if in.Coupon == nil {
		return fail(types.CouponValidationErrorCodeNotFound)
	}
	return pass()
}

func (e *Engine) checkIsActive(in *ValidationInput, _ time.Time) stepResult {
	if !in.Coupon.IsActive {
		return fail(types.CouponValidationErrorCodeInactive)
	}
	return pass()
}

func (e *Engine) checkValidityPeriod(in *ValidationInput, now time.Time) stepResult {
	if !in.Coupon.IsWithinValidity(now) {
		return fail(types.CouponValidationErrorCodeExpired)
	}
	return pass()
}

func (e *Engine) checkTierEligibility(in *ValidationInput, _ time.Time) stepResult {
	if !in.Coupon.IsEligibleTier(in.Context.SubscriptionTier) {
		return fail(types.CouponValidationErrorCodeTierNotEligible)
	}
	return pass()
}

func (e *Engine) checkMaxUses(in *ValidationInput, _ time.Time) stepResult {
	if in.Coupon.MaxUses != nil && in.Coupon.TotalUses() >= *in.Coupon.MaxUses {
		return fail(types.CouponValidationErrorCodeMaxUsesExceeded)
	}
	return pass()
}

func (e *Engine) checkMaxUsesPerUser(in *ValidationInput, _ time.Time) stepResult {
	limit := in.Coupon.MaxUsesPerUser
	if limit > 0 && in.History.SuccessfulRedemptions >= limit {
		return fail(types.CouponValidationErrorCodeMaxUserUsesExceeded)
	}
	return pass()
}

func (e *Engine) checkCampaignBudget(in *ValidationInput, _ time.Time) stepResult {
	if in.Coupon.Campaign != nil && !in.Coupon.Campaign.HasBudgetRemaining() {
		return fail(types.CouponValidationErrorCodeCampaignBudgetExceeded)
	}
	return pass()
}

func (e *Engine) checkMinPurchaseAmount(in *ValidationInput, _ time.Time) stepResult {
	minimum := in.Coupon.MinPurchaseAmount
	if minimum != nil && in.Context.CartTotal.LessThan(*minimum) {
		return fail(types.CouponValidationErrorCodeMinPurchaseNotMet)
	}
	return pass()
}

func (e *Engine) checkCustomRules(in *ValidationInput, now time.Time) stepResult {
	for _, rule := range in.Coupon.ActiveRules() {
		eval, ok := e.rules[rule.RuleType]
		if !ok {
			// unrecognized rule types pass until an evaluator is registered for them
			continue
		}
		if !eval(rule, in, now) {
			return fail(types.CouponValidationErrorCodeCustomRuleFailed)
		}
	}
	return pass()
}

func (e *Engine) checkFraudFlags(in *ValidationInput, _ time.Time) stepResult {
	if in.History.UnreviewedCriticalFlags > 0 {
		return fail(types.CouponValidationErrorCodeFraudDetected)
	}
	return pass()
}

func (e *Engine) checkRedemptionVelocity(in *ValidationInput, now time.Time) stepResult {
	attempts := in.History.AttemptsInWindow
	if attempts < e.cfg.VelocityMaxAttempts {
		return pass()
	}

	res := fail(types.CouponValidationErrorCodeVelocityLimitExceeded)
	res.signal = &fraud.Signal{
		Type:      types.FraudDetectionTypeVelocityAbuse,
		Severity:  types.FraudSeverityHigh,
		Flagged:   true,
		UserID:    in.UserID,
		CouponID:  in.Coupon.ID,
		IPAddress: in.Context.IPAddress,
		Details: map[string]any{
			"attempts":       attempts,
			"max_attempts":   e.cfg.VelocityMaxAttempts,
			"window_seconds": int(e.cfg.VelocityWindow.Seconds()),
		},
		DetectedAt: now,
	}
	return res
}

// checkDeviceFingerprint never blocks a redemption. It only raises an unflagged signal for review.
func (e *Engine) checkDeviceFingerprint(in *ValidationInput, now time.Time) stepResult {
	if in.Context.DeviceFingerprint == "" {
		return pass()
	}

	ips := in.History.DistinctIPs
	if len(ips) <= e.cfg.MaxDistinctIPs || lo.Contains(ips, in.Context.IPAddress) {
		return pass()
	}

	res := pass()
	res.signal = &fraud.Signal{
		Type:      types.FraudDetectionTypeIPSwitching,
		Severity:  types.FraudSeverityMedium,
		Flagged:   false,
		UserID:    in.UserID,
		CouponID:  in.Coupon.ID,
		IPAddress: in.Context.IPAddress,
		Details: map[string]any{
			"distinct_ips":       len(ips),
			"device_fingerprint": in.Context.DeviceFingerprint,
		},
		DetectedAt: now,
	}
	return res
}
