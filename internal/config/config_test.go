package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	conf, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "info", conf.Logger.Level)
	assert.Equal(t, ":8080", conf.HTTP.Address)
	assert.Equal(t, "sqlite", conf.Storage.Driver)
	assert.Equal(t, "data/taskbot.db", conf.Storage.DSN)
	assert.Equal(t, 25, conf.Telegram.RateLimit)
	assert.Equal(t, 10*time.Minute, conf.Telegram.DedupeTTL)
	assert.Equal(t, "whisper-1", conf.OpenAI.Model)
	assert.Equal(t, "Asia/Kolkata", conf.Schedule.Timezone)
	assert.Equal(t, time.Minute, conf.Schedule.ReminderInterval)
	assert.Equal(t, 30*time.Minute, conf.Reminder.EarlyLead)
	assert.Equal(t, 10*time.Minute, conf.Reminder.DueGrace)

	loc, err := conf.Schedule.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())

	hour, minute, err := conf.Schedule.DigestClock()
	require.NoError(t, err)
	assert.Equal(t, 8, hour)
	assert.Equal(t, 0, minute)
}

func TestParseFromEnv(t *testing.T) {
	t.Setenv("TASKBOT_STORAGE_DRIVER", "memory")
	t.Setenv("TASKBOT_TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TASKBOT_TELEGRAM_WEBHOOK_SECRET", "s3cr3t")
	t.Setenv("TASKBOT_TELEGRAM_PUBLIC_BASE_URL", "https://bot.example.com")
	t.Setenv("TASKBOT_SCHEDULE_DIGEST_TIME", "07:30")
	t.Setenv("TASKBOT_REMINDER_EARLY_LEAD", "45m")

	conf, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "memory", conf.Storage.Driver)
	assert.Equal(t, 45*time.Minute, conf.Reminder.EarlyLead)
	assert.NoError(t, conf.Telegram.RequireBot())
	assert.NoError(t, conf.Telegram.RequireWebhook())

	hour, minute, err := conf.Schedule.DigestClock()
	require.NoError(t, err)
	assert.Equal(t, 7, hour)
	assert.Equal(t, 30, minute)
}

func TestParseInvalid(t *testing.T) {
	cases := map[string]string{
		"TASKBOT_STORAGE_DRIVER":       "postgres",
		"TASKBOT_LOGGER_LEVEL":         "loud",
		"TASKBOT_SCHEDULE_TIMEZONE":    "Mars/Olympus",
		"TASKBOT_SCHEDULE_DIGEST_TIME": "8am",
		"TASKBOT_TELEGRAM_RATE_LIMIT":  "0",
		"TASKBOT_REMINDER_DUE_GRACE":   "soon",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}

func TestRequireWebhook(t *testing.T) {
	assert.Error(t, Telegram{}.RequireBot())
	assert.Error(t, Telegram{BotToken: "x"}.RequireWebhook())
	assert.Error(t, Telegram{BotToken: "x", WebhookSecret: "y"}.RequireWebhook())
}
