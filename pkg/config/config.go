package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"

	"github.com/FACorreiaa/subscription-radar/pkg/money"
	"github.com/FACorreiaa/subscription-radar/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig
	Storage       StorageConfig
	Notifications NotificationsConfig
	Push          PushConfig
	Mail          MailConfig
	Digest        DigestConfig
	Observability ObservabilityConfig
	Logging       LoggingConfig
}

type AppConfig struct {
	Currency        string
	Timezone        string
	ReminderHour    int
	ReminderMinute  int
	ReminderOffsets []int
}

type StorageConfig struct {
	Type           string
	LocalPath      string
	SQLitePath     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string
}

type NotificationsConfig struct {
	// Enabled false makes the facility answer the permission prompt with no.
	Enabled       bool
	RetryAttempts int
	RetryBase     time.Duration
	// SyncSpec is how often serve reloads storage for changes made elsewhere.
	SyncSpec string
}

type PushConfig struct {
	Enabled            bool
	Token              string
	Endpoint           string
	RateLimitPerSecond float64
	RateLimitBurst     int
	BreakerFailures    int
	BreakerTimeout     time.Duration
}

type MailConfig struct {
	APIKey  string
	From    string
	To      string
	BaseURL string
}

type DigestConfig struct {
	Enabled     bool
	DailySpec   string
	MonthlySpec string
	WindowFrom  int
	WindowTo    int
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables. Any files given are
// loaded first with godotenv; variables already set win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Currency:        strings.ToUpper(getEnv("RADAR_CURRENCY", money.DefaultCurrency)),
			Timezone:        getEnv("RADAR_TIMEZONE", "Local"),
			ReminderHour:    getEnvAsInt("RADAR_REMINDER_HOUR", 9),
			ReminderMinute:  getEnvAsInt("RADAR_REMINDER_MINUTE", 0),
			ReminderOffsets: getEnvAsIntSlice("RADAR_REMINDER_OFFSETS", []int{7, 3, 1}),
		},
		Storage: StorageConfig{
			Type:           getEnv("STORAGE_TYPE", string(storage.StorageTypeLocal)),
			LocalPath:      getEnv("STORAGE_LOCAL_PATH", "./data"),
			SQLitePath:     getEnv("STORAGE_SQLITE_PATH", "./data/radar.db"),
			RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:  getEnv("REDIS_PASSWORD", ""),
			RedisDB:        getEnvAsInt("REDIS_DB", 0),
			RedisNamespace: getEnv("REDIS_NAMESPACE", "radar"),
		},
		Notifications: NotificationsConfig{
			Enabled:       getEnvAsBool("NOTIFICATIONS_ENABLED", true),
			RetryAttempts: getEnvAsInt("NOTIFICATIONS_RETRY_ATTEMPTS", 3),
			RetryBase:     getEnvAsDuration("NOTIFICATIONS_RETRY_BASE", 100*time.Millisecond),
			SyncSpec:      getEnv("NOTIFICATIONS_SYNC_SPEC", "@every 1m"),
		},
		Push: PushConfig{
			Enabled:            getEnvAsBool("PUSH_ENABLED", false),
			Token:              getEnv("PUSH_TOKEN", ""),
			Endpoint:           getEnv("PUSH_ENDPOINT", ""),
			RateLimitPerSecond: getEnvAsFloat("PUSH_RATE_LIMIT_PER_SECOND", 6),
			RateLimitBurst:     getEnvAsInt("PUSH_RATE_LIMIT_BURST", 6),
			BreakerFailures:    getEnvAsInt("PUSH_BREAKER_FAILURES", 5),
			BreakerTimeout:     getEnvAsDuration("PUSH_BREAKER_TIMEOUT", time.Minute),
		},
		Mail: MailConfig{
			APIKey:  getEnv("RESEND_API_KEY", ""),
			From:    getEnv("RESEND_FROM_EMAIL", ""),
			To:      getEnv("DIGEST_EMAIL_TO", ""),
			BaseURL: getEnv("RESEND_BASE_URL", ""),
		},
		Digest: DigestConfig{
			Enabled:     getEnvAsBool("DIGEST_ENABLED", true),
			DailySpec:   getEnv("DIGEST_DAILY_SPEC", "0 9 * * *"),
			MonthlySpec: getEnv("DIGEST_MONTHLY_SPEC", "0 9 1 * *"),
			WindowFrom:  getEnvAsInt("DIGEST_WINDOW_FROM", 3),
			WindowTo:    getEnvAsInt("DIGEST_WINDOW_TO", 5),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !money.IsKnownCurrency(c.App.Currency) {
		return fmt.Errorf("RADAR_CURRENCY %q is not an ISO-4217 code", c.App.Currency)
	}
	if _, err := c.App.Location(); err != nil {
		return err
	}
	if c.App.ReminderHour < 0 || c.App.ReminderHour > 23 {
		return errors.New("RADAR_REMINDER_HOUR must be between 0 and 23")
	}
	if c.App.ReminderMinute < 0 || c.App.ReminderMinute > 59 {
		return errors.New("RADAR_REMINDER_MINUTE must be between 0 and 59")
	}
	if len(c.App.ReminderOffsets) == 0 {
		return errors.New("RADAR_REMINDER_OFFSETS must list at least one offset")
	}
	for _, o := range c.App.ReminderOffsets {
		if o < 0 {
			return fmt.Errorf("RADAR_REMINDER_OFFSETS contains negative offset %d", o)
		}
	}
	if c.Digest.WindowFrom < 0 || c.Digest.WindowTo < c.Digest.WindowFrom {
		return errors.New("DIGEST_WINDOW_FROM and DIGEST_WINDOW_TO must form a non-negative range")
	}
	if c.Push.Enabled && c.Push.Token == "" {
		return errors.New("PUSH_TOKEN is required when PUSH_ENABLED is set")
	}
	return nil
}

// Location resolves the configured timezone
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid RADAR_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// StorageOptions converts the section into a storage.Config
func (c *StorageConfig) StorageOptions() *storage.Config {
	return &storage.Config{
		Type:           storage.StorageType(c.Type),
		LocalPath:      c.LocalPath,
		SQLitePath:     c.SQLitePath,
		RedisAddr:      c.RedisAddr,
		RedisPassword:  c.RedisPassword,
		RedisDB:        c.RedisDB,
		RedisNamespace: c.RedisNamespace,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsIntSlice parses a comma separated list such as "7,3,1". Any bad
// element makes the whole value fall back to the default.
func getEnvAsIntSlice(key string, defaultValue []int) []int {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}
