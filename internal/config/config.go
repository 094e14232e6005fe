package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/Checker-Finance/sme-deals/pkg/config"
)

// ErrMissing indicates required configuration is absent. Fatal before any fetch.
var ErrMissing = errors.New("missing required configuration")

// Config holds the runtime configuration for the sme-deals service.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	// Telegram delivery. BotToken/ChatID may be resolved from AWS Secrets
	// Manager at startup when TelegramSecretName is set.
	BotToken           string
	ChatID             string
	TelegramAPIBase    string
	MessageLimit       int
	TelegramSecretName string
	AWSRegion          string

	// Scan window and report shaping.
	LookbackDays      int
	MaxRowsPerSection int
	RetentionDays     int

	// Seen-set store selection: "file", "redis" or "postgres".
	SeenStore   string
	SeenFile    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	DatabaseURL string

	// Upstream endpoints (overridable for tests).
	NSEBaseURL    string
	NSEArchiveURL string
	BSEAPIURL     string
	HTTPTimeout   time.Duration

	// Scheduling. RunInterval == 0 means a single cron-style run.
	RunInterval time.Duration
	LockFile    string

	// Optional operator plumbing.
	NATSURL     string
	MetricsAddr string
	APIPort     int
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName: pkgconfig.GetEnv("SERVICE_NAME", "sme-deals"),
		Env:         pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:    pkgconfig.GetEnv("LOG_LEVEL", "info"),

		BotToken:           pkgconfig.GetEnv("BOT_TOKEN", pkgconfig.GetEnv("TELEGRAM_BOT_TOKEN", "")),
		ChatID:             pkgconfig.GetEnv("CHAT_ID", pkgconfig.GetEnv("TELEGRAM_CHAT_ID", "")),
		TelegramAPIBase:    pkgconfig.GetEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),
		MessageLimit:       pkgconfig.GetEnvInt("MESSAGE_LIMIT", 4096),
		TelegramSecretName: pkgconfig.GetEnv("TELEGRAM_SECRET_NAME", ""),
		AWSRegion:          pkgconfig.GetEnv("AWS_REGION", "us-east-2"),

		LookbackDays:      pkgconfig.GetEnvInt("LOOKBACK_DAYS", 1),
		MaxRowsPerSection: pkgconfig.GetEnvInt("MAX_ROWS_PER_SECTION", 20),
		RetentionDays:     pkgconfig.GetEnvInt("RETENTION_DAYS", 30),

		SeenStore:   pkgconfig.GetEnv("SEEN_STORE", "file"),
		SeenFile:    pkgconfig.GetEnv("SEEN_FILE", "sme-deals-seen.json"),
		RedisAddr:   pkgconfig.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     pkgconfig.GetEnvInt("REDIS_DB", 0),
		RedisPass:   pkgconfig.GetEnv("REDIS_PASS", ""),
		DatabaseURL: pkgconfig.GetEnv("DATABASE_URL", ""),

		NSEBaseURL:    pkgconfig.GetEnv("NSE_BASE_URL", "https://www.nseindia.com"),
		NSEArchiveURL: pkgconfig.GetEnv("NSE_ARCHIVE_URL", "https://nsearchives.nseindia.com"),
		BSEAPIURL:     pkgconfig.GetEnv("BSE_API_URL", "https://api.bseindia.com"),
		HTTPTimeout:   pkgconfig.GetEnvDuration("HTTP_TIMEOUT", 20*time.Second),

		RunInterval: pkgconfig.GetEnvDuration("RUN_INTERVAL", 0),
		LockFile:    pkgconfig.GetEnv("LOCK_FILE", "sme-deals.lock"),

		NATSURL:     pkgconfig.GetEnv("NATS_URL", ""),
		MetricsAddr: pkgconfig.GetEnv("METRICS_ADDR", ""),
		APIPort:     pkgconfig.GetEnvInt("API_PORT", 0),
	}
}

// Validate checks required configuration after any secret resolution.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("%w: BOT_TOKEN", ErrMissing)
	}
	if c.ChatID == "" {
		return fmt.Errorf("%w: CHAT_ID", ErrMissing)
	}
	if c.LookbackDays < 0 {
		return fmt.Errorf("%w: LOOKBACK_DAYS must be >= 0", ErrMissing)
	}
	return nil
}

// RetentionHorizon returns the fingerprint retention period. Never shorter
// than the lookback window plus a day, or in-window duplicates would re-fire
// after eviction.
func (c *Config) RetentionHorizon() time.Duration {
	days := c.RetentionDays
	if floor := c.LookbackDays + 1; days < floor {
		days = floor
	}
	return time.Duration(days) * 24 * time.Hour
}
