package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL and REDIS_URL are required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Redis: delivery queue, idempotency reservations, retry markers
	RedisURL string

	// Workers
	WorkerCount     int
	PopTimeout      time.Duration
	ProviderTimeout time.Duration

	// Rate limiting: maximum provider calls per second per channel
	RateLimit int

	// Retry backoff (milliseconds, exponential with jitter)
	BaseDelayMillis int64
	ExponentialBase float64
	MaxDelayMillis  int64

	// Idempotency reservation window
	IdempotencyTTL time.Duration

	// Background tick periods
	SchedulerInterval time.Duration
	SchedulerBatch    int
	DLQAlertInterval  time.Duration

	// Age policies (days)
	DLQRetentionDays    int
	MarkerRetentionDays int

	// Email provider: gmail | outlook | custom | ""
	SMTPProvider    string
	GmailEmail      string
	GmailPassword   string
	OutlookEmail    string
	OutlookPassword string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	SMTPFromEmail   string
	SMTPUseTLS      bool

	// SMS provider: console | textbelt
	SMSProvider    string
	TextbeltAPIKey string

	// Push
	FCMServerKey string
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		RedisURL: redisURL,

		WorkerCount:     getInt("WORKER_COUNT", 4),
		PopTimeout:      getDuration("QUEUE_POP_TIMEOUT", time.Second),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 10*time.Second),

		RateLimit: getInt("RATE_LIMIT_PER_CHANNEL", 100),

		BaseDelayMillis: int64(getInt("BASE_DELAY", 1000)),
		ExponentialBase: getFloat("EXPONENTIAL_BASE", 2.0),
		MaxDelayMillis:  int64(getInt("MAX_DELAY", 300_000)),

		IdempotencyTTL: getDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		SchedulerInterval: getDuration("SCHEDULER_INTERVAL", 60*time.Second),
		SchedulerBatch:    getInt("SCHEDULER_BATCH", 100),
		DLQAlertInterval:  getDuration("DLQ_ALERT_INTERVAL", 5*time.Minute),

		DLQRetentionDays:    getInt("DLQ_RETENTION_DAYS", 7),
		MarkerRetentionDays: getInt("RETRY_MARKER_RETENTION_DAYS", 7),

		SMTPProvider:    getEnv("SMTP_PROVIDER", ""),
		GmailEmail:      os.Getenv("GMAIL_EMAIL"),
		GmailPassword:   os.Getenv("GMAIL_APP_PASSWORD"),
		OutlookEmail:    os.Getenv("OUTLOOK_EMAIL"),
		OutlookPassword: os.Getenv("OUTLOOK_PASSWORD"),
		SMTPHost:        getEnv("SMTP_HOST", "localhost"),
		SMTPPort:        getInt("SMTP_PORT", 587),
		SMTPUsername:    os.Getenv("SMTP_USERNAME"),
		SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
		SMTPFromEmail:   os.Getenv("SMTP_FROM_EMAIL"),
		SMTPUseTLS:      getBool("SMTP_USE_TLS", true),

		SMSProvider:    getEnv("SMS_PROVIDER", "console"),
		TextbeltAPIKey: getEnv("TEXTBELT_API_KEY", "textbelt"),

		FCMServerKey: os.Getenv("FCM_SERVER_KEY"),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
