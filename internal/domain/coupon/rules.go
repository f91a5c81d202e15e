package coupon

import (
	"strings"
	"time"

	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
)

// RuleEvaluator decides a single custom rule. It must not have side effects.
type RuleEvaluator func(rule *ValidationRule, in *ValidationInput, now time.Time) bool

const (
	ruleParamDomains      = "domains"
	ruleParamLookbackDays = "lookback_days"
)

func defaultRules(cfg Config) map[types.ValidationRuleType]RuleEvaluator {
	return map[types.ValidationRuleType]RuleEvaluator{
		types.ValidationRuleFirstTimeUser:        firstTimeUserRule,
		types.ValidationRuleEmailDomain:          emailDomainRule,
		types.ValidationRuleMinCreditBalance:     minCreditBalanceRule,
		types.ValidationRuleExcludeRefunded:      excludeRefundedRule(cfg.RefundLookbackDays),
		types.ValidationRuleRequirePaymentMethod: requirePaymentMethodRule,
	}
}

func firstTimeUserRule(_ *ValidationRule, in *ValidationInput, _ time.Time) bool {
	return in.History.profile().IsFirstTimeUser()
}

func emailDomainRule(rule *ValidationRule, in *ValidationInput, _ time.Time) bool {
	domain := in.History.profile().EmailDomain()
	if domain == "" {
		return false
	}
	allowed := lo.Map(rule.Params.Strings(ruleParamDomains), func(d string, _ int) string {
		return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
	})
	return lo.Contains(allowed, domain)
}

// minCreditBalanceRule passes until balances are read from the credit ledger
func minCreditBalanceRule(_ *ValidationRule, _ *ValidationInput, _ time.Time) bool {
	return true
}

func excludeRefundedRule(defaultLookbackDays int) RuleEvaluator {
	return func(rule *ValidationRule, in *ValidationInput, now time.Time) bool {
		days := rule.Params.Int(ruleParamLookbackDays, defaultLookbackDays)
		return !in.History.profile().RefundedSince(now.AddDate(0, 0, -days))
	}
}

func requirePaymentMethodRule(_ *ValidationRule, in *ValidationInput, _ time.Time) bool {
	return in.History.profile().HasPaymentMethod
}
