package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"taskbot/internal/config"
	"taskbot/internal/logger"
	"taskbot/internal/scheduler"
	"taskbot/internal/setup"
)

func main() {
	app := &cli.App{
		Name:  "telegram-bot",
		Usage: "Telegram to-do bot with natural language tasks and reminders",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				EnvVars: []string{"TASKBOT_CLI_DEBUG"},
				Usage:   "Print error stack traces",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the webhook and cron endpoints over HTTP",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "scheduler",
						Value: true,
						Usage: "Also run reminder scans and the daily digest in process",
					},
				},
				Action: serve,
			},
			{
				Name:   "poll",
				Usage:  "Receive updates by long polling instead of a webhook",
				Action: poll,
			},
			{
				Name:   "remind",
				Usage:  "Run one reminder scan for every user",
				Action: remind,
			},
			{
				Name:   "digest",
				Usage:  "Send the daily digest to every user",
				Action: digest,
			},
			{
				Name:   "setup-webhook",
				Usage:  "Register the webhook URL with Telegram",
				Action: setupWebhook,
			},
		},
	}

	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		if c.Bool("debug") {
			logger.Error(c.Context, nil, fmt.Sprintf("%+v", err))
			return
		}
		logger.Error(c.Context, err, "command failed")
	}

	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func newApp(c *cli.Context, withTelegram bool) (*setup.App, error) {
	conf, err := config.Parse()
	if err != nil {
		return nil, err
	}

	app, err := setup.NewApp(c.Context, conf)
	if err != nil {
		return nil, err
	}

	if withTelegram {
		if err := app.ConnectTelegram(c.Context); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(c, true)
	if err != nil {
		return err
	}
	defer app.Close()

	if c.Bool("scheduler") {
		if err := startScheduler(ctx, app); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              app.Config.HTTP.Address,
		Handler:           app.Server().Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening", "address", srv.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return errors.WithStack(srv.Shutdown(shutdownCtx))
}

func poll(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(c, true)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := startScheduler(ctx, app); err != nil {
		return err
	}

	updates, err := app.Telegram.Updates(ctx)
	if err != nil {
		return err
	}
	defer app.Telegram.StopUpdates()

	logger.Info(ctx, "bot started, listening for updates")

	// Updates are handled one at a time; the per-user read and write of the
	// task list is not locked.
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "shutting down")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := app.Bot.HandleUpdate(ctx, update); err != nil {
				logger.Error(ctx, err, "update handling failed", "update", update.UpdateID)
			}
		}
	}
}

func remind(c *cli.Context) error {
	app, err := newApp(c, true)
	if err != nil {
		return err
	}
	defer app.Close()

	sent, err := app.Tasks.RunReminders(c.Context, app.Telegram)
	if err != nil {
		return err
	}

	fmt.Printf("reminders sent: %d\n", sent)
	return nil
}

func digest(c *cli.Context) error {
	app, err := newApp(c, true)
	if err != nil {
		return err
	}
	defer app.Close()

	sent, err := app.Tasks.RunDigest(c.Context, app.Telegram)
	if err != nil {
		return err
	}

	fmt.Printf("digests sent: %d\n", sent)
	return nil
}

func setupWebhook(c *cli.Context) error {
	conf, err := config.Parse()
	if err != nil {
		return err
	}
	if err := conf.Telegram.RequireWebhook(); err != nil {
		return err
	}

	app, err := newApp(c, true)
	if err != nil {
		return err
	}
	defer app.Close()

	url, err := app.Telegram.SetWebhook(c.Context, conf.Telegram.PublicBaseURL, conf.Telegram.WebhookSecret)
	if err != nil {
		return err
	}

	fmt.Println(url)
	return nil
}

func startScheduler(ctx context.Context, app *setup.App) error {
	hour, minute, err := app.Config.Schedule.DigestClock()
	if err != nil {
		return err
	}

	go scheduler.Every(ctx, "reminders", app.Config.Schedule.ReminderInterval, func(ctx context.Context) error {
		_, err := app.Tasks.RunReminders(ctx, app.Telegram)
		return err
	})

	go scheduler.Daily(ctx, "digest", app.Tasks.Location(), hour, minute, func(ctx context.Context) error {
		_, err := app.Tasks.RunDigest(ctx, app.Telegram)
		return err
	})

	logger.Info(ctx, "scheduler started",
		"interval", app.Config.Schedule.ReminderInterval,
		"digest", app.Config.Schedule.DigestTime,
		"timezone", app.Config.Schedule.Timezone,
	)
	return nil
}
