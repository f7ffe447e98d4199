// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Email       EmailConfig
	Payment     PaymentConfig
	AWS         AWSConfig
	Licensing   LicensingConfig
	Sweep       SweepConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
	// Outbound dispatch throttle, messages per second.
	RatePerSecond float64
	Burst         int
}

type PaymentConfig struct {
	StripeSecretKey string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	DocsBucket      string
}

// LicensingConfig carries every threshold the rules engine consults.
// Money values are integer cents; percentages are whole percents.
type LicensingConfig struct {
	ExpiringSoonDays         int
	DraftStaleDays           int
	MaxGracePeriodDays       int
	AmendmentDeadlineDays    int
	ExtensionDeadlineDays    int
	AutoApproveExtensionDays int
	RenewalWindowDays        int
	OfferExpiryDays          int
	EarlyRenewalDays         int

	UnverifiedBudgetCapCents int64
	HighValueThresholdCents  int64
	MinimumFeeCents          int64

	InflationPctPerYear        int
	MaxIncreasePct             int
	MaxDecreasePct             int
	MaxDirectFinancialDeltaPct int

	PoorStandingFailures int
	LongTermDays         int
}

type SweepConfig struct {
	IntervalMinutes int
	Workers         int
	LockTTLSeconds  int
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8081"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "licensecore"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			SMTPHost:      getEnv("SMTP_HOST", ""),
			SMTPPort:      getEnv("SMTP_PORT", "587"),
			SMTPUsername:  getEnv("SMTP_USERNAME", ""),
			SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
			FromEmail:     getEnv("FROM_EMAIL", "noreply@licensecore.local"),
			FromName:      getEnv("FROM_NAME", "Licensing"),
			RatePerSecond: getEnvAsFloat("EMAIL_RATE_PER_SECOND", 5.0),
			Burst:         getEnvAsInt("EMAIL_BURST", 10),
		},
		Payment: PaymentConfig{
			StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			DocsBucket:      getEnv("AWS_DOCS_BUCKET", "licensecore-ownership-docs"),
		},
		Licensing: LicensingConfig{
			ExpiringSoonDays:         getEnvAsInt("EXPIRING_SOON_DAYS", 30),
			DraftStaleDays:           getEnvAsInt("DRAFT_STALE_DAYS", 90),
			MaxGracePeriodDays:       getEnvAsInt("MAX_GRACE_PERIOD_DAYS", 30),
			AmendmentDeadlineDays:    getEnvAsInt("AMENDMENT_DEADLINE_DAYS", 14),
			ExtensionDeadlineDays:    getEnvAsInt("EXTENSION_DEADLINE_DAYS", 14),
			AutoApproveExtensionDays: getEnvAsInt("AUTO_APPROVE_EXTENSION_DAYS", 30),
			RenewalWindowDays:        getEnvAsInt("RENEWAL_WINDOW_DAYS", 90),
			OfferExpiryDays:          getEnvAsInt("OFFER_EXPIRY_DAYS", 30),
			EarlyRenewalDays:         getEnvAsInt("EARLY_RENEWAL_DAYS", 60),

			UnverifiedBudgetCapCents: getEnvAsInt64("UNVERIFIED_BUDGET_CAP_CENTS", 1_000_000),
			HighValueThresholdCents:  getEnvAsInt64("HIGH_VALUE_THRESHOLD_CENTS", 500_000),
			MinimumFeeCents:          getEnvAsInt64("MINIMUM_FEE_CENTS", 5_000),

			InflationPctPerYear:        getEnvAsInt("INFLATION_PCT_PER_YEAR", 5),
			MaxIncreasePct:             getEnvAsInt("MAX_INCREASE_PCT", 25),
			MaxDecreasePct:             getEnvAsInt("MAX_DECREASE_PCT", 25),
			MaxDirectFinancialDeltaPct: getEnvAsInt("MAX_DIRECT_FINANCIAL_DELTA_PCT", 20),

			PoorStandingFailures: getEnvAsInt("POOR_STANDING_FAILURES", 3),
			LongTermDays:         getEnvAsInt("LONG_TERM_DAYS", 365),
		},
		Sweep: SweepConfig{
			IntervalMinutes: getEnvAsInt("SWEEP_INTERVAL_MINUTES", 15),
			Workers:         getEnvAsInt("SWEEP_WORKERS", 4),
			LockTTLSeconds:  getEnvAsInt("LOCK_TTL_SECONDS", 30),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}
	if c.Licensing.MaxIncreasePct <= 0 || c.Licensing.MaxDecreasePct <= 0 {
		return fmt.Errorf("pricing caps must be positive")
	}
	if c.Licensing.MinimumFeeCents < 0 {
		return fmt.Errorf("minimum fee must not be negative")
	}
	if c.Sweep.Workers <= 0 {
		return fmt.Errorf("sweep worker count must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
