package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REMINDER_POLL_INTERVAL", "")
	t.Setenv("SCHEDULER_LOCK", "")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultReminderPollInterval, cfg.ReminderPollInterval)
	assert.Equal(t, "local", cfg.SchedulerLock)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TIMEZONE", "Europe/Rome")
	t.Setenv("REMINDER_POLL_INTERVAL", "15s")
	t.Setenv("SCHEDULER_LOCK", "REDIS")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_SECURE", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.ReminderPollInterval)
	assert.Equal(t, "redis", cfg.SchedulerLock)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.True(t, cfg.SMTPSecure)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "Europe/Rome", cfg.Location.String())
}

func TestLoad_NonPositiveIntervalFallsBack(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("REMINDER_POLL_INTERVAL", "-5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultReminderPollInterval, cfg.ReminderPollInterval)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.Error(t, err)
}
