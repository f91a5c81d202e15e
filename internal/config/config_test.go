package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Coupon.VelocityMaxAttempts)
	assert.Equal(t, time.Hour, cfg.Coupon.VelocityWindow)
	assert.Equal(t, 5, cfg.Coupon.MaxDistinctIPs)
	assert.Equal(t, 90, cfg.Coupon.RefundLookbackDays)
}

func TestValidate_RejectsZeroVelocity(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Coupon.VelocityMaxAttempts = 0
	assert.Error(t, cfg.Validate())
}

func TestNewConfig_LoadsYAML(t *testing.T) {
	t.Setenv("ASSISTLY_LOGGING_LEVEL", "info")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", string(cfg.Logging.Level))
	assert.Equal(t, 49.0, cfg.Pricing.MonthlyUSD["pro_max"])
	assert.Equal(t, 30*time.Second, cfg.Coupon.CacheTTL)
	assert.Equal(t, "assistly", cfg.Postgres.DBName)
}

func TestProrationConfig_Location(t *testing.T) {
	loc, err := ProrationConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = ProrationConfig{Timezone: "Not/AZone"}.Location()
	assert.Error(t, err)
}
