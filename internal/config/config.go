package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/assistly/billing/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig
	Cache      CacheConfig
	Kafka      KafkaConfig
	Event      EventConfig
	Sentry     SentryConfig
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Pricing    PricingConfig
	Proration  ProrationConfig
	Coupon     CouponConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
	// AllowedOrigins for CORS. Empty allows every origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	ConnectRetries         uint64 `mapstructure:"connect_retries"`
}

type CacheConfig struct {
	Enabled bool
}

type KafkaConfig struct {
	Brokers       []string
	ClientID      string `mapstructure:"client_id"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	TLS           bool
}

// EventConfig controls where domain events (fraud signals, redemptions, tier changes) go
type EventConfig struct {
	PublishDestination types.PublishDestination `mapstructure:"publish_destination" validate:"omitempty,oneof=memory kafka"`
	TopicPrefix        string                   `mapstructure:"topic_prefix"`
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig throttles the coupon endpoints per client IP
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int
}

// PricingConfig overrides the built-in monthly USD list price per tier, keyed by tier name
type PricingConfig struct {
	MonthlyUSD map[string]float64 `mapstructure:"monthly_usd"`
}

type ProrationConfig struct {
	// Timezone whose local midnight separates billing days
	Timezone string
}

type CouponConfig struct {
	VelocityMaxAttempts int           `mapstructure:"velocity_max_attempts" validate:"min=1"`
	VelocityWindow      time.Duration `mapstructure:"velocity_window" validate:"gt=0"`
	MaxDistinctIPs      int           `mapstructure:"max_distinct_ips" validate:"min=0"`
	RefundLookbackDays  int           `mapstructure:"refund_lookback_days" validate:"min=0"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional; real deployments inject the environment directly
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/assistly")

	v.SetEnvPrefix("ASSISTLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()
	v.SetDefault("deployment.mode", d.Deployment.Mode)
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)
	v.SetDefault("postgres.connect_retries", 5)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("kafka.client_id", d.Kafka.ClientID)
	v.SetDefault("kafka.consumer_group", d.Kafka.ConsumerGroup)
	v.SetDefault("event.publish_destination", d.Event.PublishDestination)
	v.SetDefault("event.topic_prefix", d.Event.TopicPrefix)
	v.SetDefault("rate_limit.requests_per_second", d.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
	v.SetDefault("proration.timezone", d.Proration.Timezone)
	v.SetDefault("coupon.velocity_max_attempts", d.Coupon.VelocityMaxAttempts)
	v.SetDefault("coupon.velocity_window", d.Coupon.VelocityWindow)
	v.SetDefault("coupon.max_distinct_ips", d.Coupon.MaxDistinctIPs)
	v.SetDefault("coupon.refund_lookback_days", d.Coupon.RefundLookbackDays)
	v.SetDefault("coupon.cache_ttl", d.Coupon.CacheTTL)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Cache:      CacheConfig{Enabled: true},
		Kafka: KafkaConfig{
			ClientID:      "assistly-billing",
			ConsumerGroup: "assistly-billing",
		},
		Event: EventConfig{
			PublishDestination: types.PublishToMemory,
			TopicPrefix:        "billing",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Proration: ProrationConfig{Timezone: "UTC"},
		Coupon: CouponConfig{
			VelocityMaxAttempts: 3,
			VelocityWindow:      time.Hour,
			MaxDistinctIPs:      5,
			RefundLookbackDays:  90,
			CacheTTL:            30 * time.Second,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// Location resolves the proration timezone, falling back to UTC when unset
func (c ProrationConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
