package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process settings read from the environment.
type Config struct {
	Addr        string
	DBPath      string
	Env         string
	SlowQuery   time.Duration
	CSRFKey     string
	RatePerMin  int
	MaxBulk     int
	MinLeadTime time.Duration
	OTLP        string
	Publisher   string // platform gateway URL; empty disables publishing
	OutboxEvery time.Duration
	Webhook     Webhook
	Email       Email
}

// Webhook configures the outbound chat webhook transport.
type Webhook struct {
	Timeout     time.Duration
	InsecureTLS bool
}

// Email configures retry-exhausted alerts. An empty ResendKey selects the noop sender.
type Email struct {
	ResendKey string
	From      string
}

// IsProduction reports whether the process runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads an optional .env file and then the process environment.
// POST: every field has a usable value; malformed numbers fall back to defaults
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("config_dotenv_missing", "error", err.Error())
	}

	return &Config{
		Addr:        getEnv("POSTPILOT_ADDR", ":8080"),
		DBPath:      getEnv("POSTPILOT_DB_PATH", "postpilot.db"),
		Env:         getEnv("POSTPILOT_ENV", "development"),
		SlowQuery:   time.Duration(getEnvAsInt("POSTPILOT_SLOW_QUERY_MS", 50)) * time.Millisecond,
		CSRFKey:     getEnv("POSTPILOT_CSRF_KEY", ""),
		RatePerMin:  getEnvAsInt("POSTPILOT_RATE_PER_MIN", 120),
		MaxBulk:     getEnvAsInt("POSTPILOT_MAX_BULK_ITEMS", 200),
		MinLeadTime: getEnvDuration("POSTPILOT_MIN_LEAD_TIME", 5*time.Minute),
		OTLP:        getEnv("POSTPILOT_OTLP_ENDPOINT", ""),
		Publisher:   getEnv("POSTPILOT_PUBLISHER_URL", ""),
		OutboxEvery: getEnvPositiveDuration("POSTPILOT_OUTBOX_INTERVAL", time.Minute),
		Webhook: Webhook{
			Timeout:     getEnvPositiveDuration("POSTPILOT_WEBHOOK_TIMEOUT", 10*time.Second),
			InsecureTLS: getEnvBool("POSTPILOT_WEBHOOK_INSECURE_TLS", false),
		},
		Email: Email{
			ResendKey: getEnv("POSTPILOT_RESEND_KEY", ""),
			From:      getEnv("POSTPILOT_EMAIL_FROM", "PostPilot <alerts@postpilot.app>"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return fallback
}

// getEnvPositiveDuration is getEnvDuration for settings where zero is meaningless,
// such as ticker periods and timeouts.
func getEnvPositiveDuration(key string, fallback time.Duration) time.Duration {
	if d := getEnvDuration(key, fallback); d > 0 {
		return d
	}
	return fallback
}
