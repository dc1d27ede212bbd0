package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/condo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "0 6 * * *", cfg.CronSpecCollections)
	assert.Equal(t, 30*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, 3, cfg.DispatchMaxAttempts)
	assert.Equal(t, 4, cfg.DispatchConcurrency)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "collections", cfg.NATSSubjectPrefix)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, time.Local, cfg.Location)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file:condo.db")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CRON_SPEC_COLLECTIONS", "30 5 * * 1-5")
	t.Setenv("TIMEZONE", "America/New_York")
	t.Setenv("DISPATCH_TIMEOUT", "5s")
	t.Setenv("DISPATCH_CONCURRENCY", "8")
	t.Setenv("SMTP_HOST", "smtp.example.org")
	t.Setenv("SMTP_FROM", "board@example.org")
	t.Setenv("ADMIN_TELEGRAM_ID", "12345")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.org, https://b.example.org")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "America/New_York", cfg.Location.String())
	assert.Equal(t, 5*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, 8, cfg.DispatchConcurrency)
	assert.Equal(t, int64(12345), cfg.AdminTelegramID)
	assert.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", map[string]string{"DATABASE_URL": ""}},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"bad cron spec", map[string]string{"CRON_SPEC_COLLECTIONS": "every day"}},
		{"bad timeout", map[string]string{"DISPATCH_TIMEOUT": "soon"}},
		{"zero concurrency", map[string]string{"DISPATCH_CONCURRENCY": "0"}},
		{"smtp without from", map[string]string{"SMTP_HOST": "smtp.example.org", "SMTP_FROM": ""}},
		{"bad admin id", map[string]string{"ADMIN_TELEGRAM_ID": "admin"}},
		{"bad rate", map[string]string{"SMTP_RATE_PER_SECOND": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/condo")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
