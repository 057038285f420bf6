package setup

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	server "taskbot"
	"taskbot/internal/bot"
	"taskbot/internal/config"
	"taskbot/internal/logger"
	"taskbot/internal/manager"
	"taskbot/internal/reminder"
	"taskbot/internal/storage"
	"taskbot/internal/telegram"
	"taskbot/internal/transcribe"
)

// App holds the collaborators built from one configuration.
type App struct {
	Config   *config.Config
	Storage  storage.Storage
	Tasks    *manager.TaskManager
	Users    *manager.UserManager
	Telegram *telegram.Client
	Bot      *bot.Bot
}

// NewApp builds everything but the Telegram client.
func NewApp(ctx context.Context, conf *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(conf.Logger.Level))

	store, err := NewStorageFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "could not configure storage from config")
	}

	loc, err := conf.Schedule.Location()
	if err != nil {
		store.Close()
		return nil, err
	}

	scanner := reminder.Scanner{
		EarlyLead: conf.Reminder.EarlyLead,
		DueGrace:  conf.Reminder.DueGrace,
	}

	return &App{
		Config:  conf,
		Storage: store,
		Tasks:   manager.NewTaskManager(store, loc, manager.WithScanner(scanner)),
		Users:   manager.NewUserManager(store, conf.Schedule.Timezone),
	}, nil
}

// ConnectTelegram creates the Bot API client and the update handler.
func (a *App) ConnectTelegram(ctx context.Context) error {
	if err := a.Config.Telegram.RequireBot(); err != nil {
		return err
	}

	client, err := telegram.NewClient(a.Config.Telegram.BotToken, a.Config.Telegram.RateLimit, a.Config.Telegram.Debug)
	if err != nil {
		return err
	}

	transcriber := transcribe.NewTranscriber(a.Config.OpenAI.APIKey, a.Config.OpenAI.Model)
	if !transcriber.Enabled() {
		logger.Warn(ctx, "voice transcription disabled, TASKBOT_OPENAI_API_KEY is not set")
	}

	a.Telegram = client
	a.Bot = bot.NewBot(a.Tasks, a.Users, client, client, transcriber, a.Config.Telegram.DedupeTTL)
	return nil
}

// Server returns the HTTP surface. ConnectTelegram must have run.
func (a *App) Server() *server.Server {
	return server.New(a.Bot, a.Tasks, a.Telegram, a.Telegram, server.Options{
		WebhookSecret: a.Config.Telegram.WebhookSecret,
		PublicBaseURL: a.Config.Telegram.PublicBaseURL,
		CronSecret:    a.Config.HTTP.CronSecret,
	})
}

func (a *App) Close() error {
	return a.Storage.Close()
}

func NewStorageFromConfig(ctx context.Context, conf *config.Config) (storage.Storage, error) {
	switch conf.Storage.Driver {
	case "memory":
		logger.Warn(ctx, "using in-memory storage, tasks are lost on restart")
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		if dir := filepath.Dir(conf.Storage.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrapf(err, "could not create directory %s", dir)
			}
		}
		return storage.NewSQLiteStorage(ctx, conf.Storage.DSN)
	default:
		return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}
