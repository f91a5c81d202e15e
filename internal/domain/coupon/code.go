package coupon

import (
	"strings"
	"unicode"

	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/types"
	"github.com/assistly/billing/internal/validator"
)

const (
	MinCodeLength = 4
	MaxCodeLength = 50

	// generated codes keep at least this many random characters after the prefix
	minRandomChars   = 6
	maxGenerateTries = 5
	maxPrefixLength  = MaxCodeLength - minRandomChars
)

// NormalizeCode returns code in the form it is stored and looked up in
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateCode returns a new random coupon code starting with prefix, e.g. SPRING7XQ2KD.
// Characters of prefix that are not letters or digits are dropped.
func GenerateCode(prefix string) (string, error) {
	prefix = strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return -1
	}, prefix)

	if len(prefix) > maxPrefixLength {
		return "", ierr.NewErrorf("coupon code prefix longer than %d characters", maxPrefixLength).
			WithHint("Use a shorter coupon code prefix").
			WithReportableDetails(map[string]any{"prefix": prefix}).
			Mark(ierr.ErrValidation)
	}

	for i := 0; i < maxGenerateTries; i++ {
		code := types.GenerateShortIDWithPrefix(prefix, MaxCodeLength)
		if len(code) >= len(prefix)+minRandomChars && validator.IsCouponCode(code) {
			return code, nil
		}
	}

	return "", ierr.NewError("failed to generate coupon code").
		WithHint("Could not generate a coupon code, please retry").
		Mark(ierr.ErrSystem)
}
