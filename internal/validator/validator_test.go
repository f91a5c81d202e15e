package validator

import (
	"testing"

	ierr "github.com/assistly/billing/internal/errors"
	"github.com/stretchr/testify/assert"
)

type couponRequest struct {
	Code string `validate:"required,coupon_code"`
}

func TestValidateRequest_CouponCode(t *testing.T) {
	NewValidator()

	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{name: "valid", code: "SPRING24"},
		{name: "min_length", code: "ABCD"},
		{name: "too_short", code: "ABC", wantErr: true},
		{name: "lowercase", code: "spring24", wantErr: true},
		{name: "symbols", code: "SPRING-24", wantErr: true},
		{name: "too_long", code: "A123456789012345678901234567890123456789012345678901", wantErr: true},
		{name: "empty", code: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(couponRequest{Code: tt.code})
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}
