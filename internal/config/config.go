package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

const Prefix = "TASKBOT_"

type Config struct {
	Logger   Logger   `envPrefix:"LOGGER_"`
	HTTP     HTTP     `envPrefix:"HTTP_"`
	Storage  Storage  `envPrefix:"STORAGE_"`
	Telegram Telegram `envPrefix:"TELEGRAM_"`
	OpenAI   OpenAI   `envPrefix:"OPENAI_"`
	Schedule Schedule `envPrefix:"SCHEDULE_"`
	Reminder Reminder `envPrefix:"REMINDER_"`
}

type Logger struct {
	Level string `env:"LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

type HTTP struct {
	Address    string `env:"ADDRESS" envDefault:":8080" validate:"required"`
	CronSecret string `env:"CRON_SECRET"`
}

type Storage struct {
	Driver string `env:"DRIVER" envDefault:"sqlite" validate:"oneof=sqlite memory"`
	DSN    string `env:"DSN" envDefault:"data/taskbot.db" validate:"required_if=Driver sqlite"`
}

type Telegram struct {
	BotToken      string        `env:"BOT_TOKEN"`
	WebhookSecret string        `env:"WEBHOOK_SECRET"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL" validate:"omitempty,url"`
	Debug         bool          `env:"DEBUG" envDefault:"false"`
	RateLimit     int           `env:"RATE_LIMIT" envDefault:"25" validate:"min=1"`
	DedupeTTL     time.Duration `env:"DEDUPE_TTL" envDefault:"10m" validate:"min=0"`
}

type OpenAI struct {
	APIKey string `env:"API_KEY"`
	Model  string `env:"MODEL" envDefault:"whisper-1" validate:"required"`
}

type Schedule struct {
	Timezone         string        `env:"TIMEZONE" envDefault:"Asia/Kolkata" validate:"required,timezone"`
	ReminderInterval time.Duration `env:"REMINDER_INTERVAL" envDefault:"1m" validate:"min=1s"`
	DigestTime       string        `env:"DIGEST_TIME" envDefault:"08:00" validate:"datetime=15:04"`
}

type Reminder struct {
	EarlyLead time.Duration `env:"EARLY_LEAD" envDefault:"30m" validate:"min=1m"`
	DueGrace  time.Duration `env:"DUE_GRACE" envDefault:"10m" validate:"min=1m"`
}

func Parse() (*Config, error) {
	conf, err := env.ParseAsWithOptions[Config](env.Options{
		Prefix: Prefix,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := validator.New().Struct(conf); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &conf, nil
}

// Location loads the civil zone every date is interpreted in.
func (s Schedule) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	return loc, errors.Wrapf(err, "could not load timezone %q", s.Timezone)
}

func (s Schedule) DigestClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.DigestTime)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid digest time %q", s.DigestTime)
	}
	return t.Hour(), t.Minute(), nil
}

// RequireBot reports whether the settings needed to talk to Telegram are
// present.
func (t Telegram) RequireBot() error {
	if t.BotToken == "" {
		return errors.New("TASKBOT_TELEGRAM_BOT_TOKEN is not set")
	}
	return nil
}

func (t Telegram) RequireWebhook() error {
	if t.BotToken == "" || t.WebhookSecret == "" {
		return errors.New("missing TASKBOT_TELEGRAM_BOT_TOKEN or TASKBOT_TELEGRAM_WEBHOOK_SECRET")
	}
	if t.PublicBaseURL == "" {
		return errors.New("TASKBOT_TELEGRAM_PUBLIC_BASE_URL is not set")
	}
	return nil
}
