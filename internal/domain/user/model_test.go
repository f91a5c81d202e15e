package user

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestProfile_EmailDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{email: "jane@Example.COM", want: "example.com"},
		{email: "weird@name@corp.io", want: "corp.io"},
		{email: "no-at-sign", want: ""},
		{email: "trailing@", want: ""},
		{email: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			p := &Profile{Email: tt.email}
			assert.Equal(t, tt.want, p.EmailDomain())
		})
	}
}

func TestProfile_RefundedSince(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	since := now.AddDate(0, 0, -90)

	assert.False(t, (&Profile{}).RefundedSince(since))
	assert.True(t, (&Profile{LastRefundAt: lo.ToPtr(now.AddDate(0, 0, -10))}).RefundedSince(since))
	assert.True(t, (&Profile{LastRefundAt: lo.ToPtr(since)}).RefundedSince(since))
	assert.False(t, (&Profile{LastRefundAt: lo.ToPtr(since.Add(-time.Second))}).RefundedSince(since))
}
