package validator

import (
	"regexp"
	"sync"

	ierr "github.com/assistly/billing/internal/errors"
	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// couponCodePattern matches normalized coupon codes: 4-50 uppercase alphanumerics
var couponCodePattern = regexp.MustCompile(`^[A-Z0-9]{4,50}$`)

// NewValidator returns the shared validator, creating it on first use
func NewValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("coupon_code", validateCouponCode)
	})
	return validate
}

func GetValidator() *validator.Validate {
	return NewValidator()
}

// IsCouponCode reports whether code is already in canonical coupon code form
func IsCouponCode(code string) bool {
	return couponCodePattern.MatchString(code)
}

func validateCouponCode(fl validator.FieldLevel) bool {
	return IsCouponCode(fl.Field().String())
}

func ValidateRequest(req interface{}) error {
	if err := NewValidator().Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, err := range validateErrs {
				details[err.Field()] = err.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
