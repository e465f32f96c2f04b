/**
 * @description
 * Configuration management for the fundraising service.
 * Settings are read from environment variables through Viper, with defaults for
 * the reconciliation schedule, ledger lock timeout and messaging names.
 *
 * @dependencies
 * - github.com/spf13/viper: environment-backed configuration.
 * - github.com/robfig/cron/v3: validates the reconciliation schedule.
 */
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	defaultLedgerLockTimeoutMS = 5000
	defaultSweepLockTTLSeconds = 900
)

// Config holds all configuration for the fundraising service.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RunMigrations          bool   `mapstructure:"RUN_MIGRATIONS"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	EventsExchange         string `mapstructure:"EVENTS_EXCHANGE"`
	PaymentsExchange       string `mapstructure:"PAYMENTS_EXCHANGE"`
	PaymentQueue           string `mapstructure:"PAYMENT_QUEUE"`
	RedisURL               string `mapstructure:"REDIS_URL"`
	SweepLockKey           string `mapstructure:"SWEEP_LOCK_KEY"`
	SweepLockTTLSeconds    int    `mapstructure:"SWEEP_LOCK_TTL_SECONDS"`
	PawPointsServiceURL    string `mapstructure:"PAWPOINTS_SERVICE_URL"`
	VerificationServiceURL string `mapstructure:"VERIFICATION_SERVICE_URL"`
	InternalAPIKey         string `mapstructure:"INTERNAL_API_KEY"`
	CORSAllowedOrigins     string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	ReconciliationSchedule string `mapstructure:"RECONCILIATION_SCHEDULE"`
	LedgerLockTimeoutMS    int    `mapstructure:"LEDGER_LOCK_TIMEOUT_MS"`
}

// LedgerLockTimeout is how long a ledger transaction waits for a row lock.
func (c Config) LedgerLockTimeout() time.Duration {
	return time.Duration(c.LedgerLockTimeoutMS) * time.Millisecond
}

// SweepLockTTL bounds how long one replica may hold the reconciliation lock.
func (c Config) SweepLockTTL() time.Duration {
	return time.Duration(c.SweepLockTTLSeconds) * time.Second
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8090")
	viper.SetDefault("RUN_MIGRATIONS", true)
	viper.SetDefault("EVENTS_EXCHANGE", "pawfund.events")
	viper.SetDefault("PAYMENTS_EXCHANGE", "pawfund.payments")
	viper.SetDefault("PAYMENT_QUEUE", "fundraising_service.payment_confirmations")
	viper.SetDefault("SWEEP_LOCK_KEY", "pawfund:fundraising:reconciliation")
	viper.SetDefault("SWEEP_LOCK_TTL_SECONDS", defaultSweepLockTTLSeconds)
	viper.SetDefault("RECONCILIATION_SCHEDULE", "0 3 * * *") // At 03:00 every day.
	viper.SetDefault("LEDGER_LOCK_TIMEOUT_MS", defaultLedgerLockTimeoutMS)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "https://*,http://*")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RUN_MIGRATIONS")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("PAYMENTS_EXCHANGE")
	_ = viper.BindEnv("PAYMENT_QUEUE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("SWEEP_LOCK_KEY")
	_ = viper.BindEnv("SWEEP_LOCK_TTL_SECONDS")
	_ = viper.BindEnv("PAWPOINTS_SERVICE_URL")
	_ = viper.BindEnv("VERIFICATION_SERVICE_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("RECONCILIATION_SCHEDULE")
	_ = viper.BindEnv("LEDGER_LOCK_TIMEOUT_MS")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	config.ReconciliationSchedule = strings.TrimSpace(config.ReconciliationSchedule)
	if _, err := cron.ParseStandard(config.ReconciliationSchedule); err != nil {
		return nil, fmt.Errorf("invalid RECONCILIATION_SCHEDULE %q: %w", config.ReconciliationSchedule, err)
	}

	if config.LedgerLockTimeoutMS <= 0 {
		config.LedgerLockTimeoutMS = defaultLedgerLockTimeoutMS
	}
	if config.SweepLockTTLSeconds <= 0 {
		config.SweepLockTTLSeconds = defaultSweepLockTTLSeconds
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)

	return &config, nil
}
