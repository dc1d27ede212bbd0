package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseDriver  string // "postgres" or "sqlite"
	DatabaseURL     string
	LogLevel        string
	Environment     string
	AssociationName string

	CronSpecCollections string
	Location            *time.Location // billing periods and cron are evaluated here

	DispatchTimeout        time.Duration // per transport call
	DispatchMaxAttempts    int
	DispatchInitialBackoff time.Duration
	DispatchConcurrency    int

	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string
	SMTPRatePerSecond float64

	NoticeTemplatesPath string // empty means the embedded catalogue

	TelegramToken       string // optional, enables the operator bot
	AdminTelegramID     int64
	BoardTelegramChatID int64

	NATSURL           string // optional
	NATSSubjectPrefix string

	HTTPAddr           string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Errors are ignored if the file doesn't exist; existing env variables win.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseDriver = strings.ToLower(envOr("DATABASE_DRIVER", "postgres"))
	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite" {
		return nil, fmt.Errorf("invalid DATABASE_DRIVER %q: expected postgres or sqlite", cfg.DatabaseDriver)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))
	cfg.AssociationName = envOr("ASSOCIATION_NAME", "Condominium Association")

	cfg.CronSpecCollections = envOr("CRON_SPEC_COLLECTIONS", "0 6 * * *") // 06:00 daily
	if _, err := cron.ParseStandard(cfg.CronSpecCollections); err != nil {
		return nil, fmt.Errorf("invalid CRON_SPEC_COLLECTIONS: %w", err)
	}

	cfg.Location = time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		cfg.Location, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
		}
	}

	if cfg.DispatchTimeout, err = envDuration("DISPATCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.DispatchInitialBackoff, err = envDuration("DISPATCH_INITIAL_BACKOFF", time.Second); err != nil {
		return nil, err
	}
	if cfg.DispatchMaxAttempts, err = envInt("DISPATCH_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.DispatchConcurrency, err = envInt("DISPATCH_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.DispatchMaxAttempts < 1 || cfg.DispatchConcurrency < 1 {
		return nil, fmt.Errorf("DISPATCH_MAX_ATTEMPTS and DISPATCH_CONCURRENCY must be at least 1")
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	if cfg.SMTPPort, err = envInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if cfg.SMTPHost != "" && cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("SMTP_FROM is not set")
	}
	rate := envOr("SMTP_RATE_PER_SECOND", "5")
	cfg.SMTPRatePerSecond, err = strconv.ParseFloat(rate, 64)
	if err != nil || cfg.SMTPRatePerSecond <= 0 {
		return nil, fmt.Errorf("invalid SMTP_RATE_PER_SECOND %q", rate)
	}

	cfg.NoticeTemplatesPath = os.Getenv("NOTICE_TEMPLATES_PATH")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.AdminTelegramID, err = envInt64("ADMIN_TELEGRAM_ID"); err != nil {
		return nil, err
	}
	if cfg.BoardTelegramChatID, err = envInt64("BOARD_TELEGRAM_CHAT_ID"); err != nil {
		return nil, err
	}

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = envOr("NATS_SUBJECT_PREFIX", "collections")

	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	for _, origin := range strings.Split(envOr("CORS_ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// envInt64 returns 0 when the variable is unset.
func envInt64(key string) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
