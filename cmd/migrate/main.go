package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"taskbot/internal/config"
	"taskbot/internal/logger"
	"taskbot/internal/storage"
)

func main() {
	app := &cli.App{
		Name:      "migrate",
		Usage:     "Manage the SQLite schema",
		ArgsUsage: "[up|down|status|version|reset]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "Database path, defaults to TASKBOT_STORAGE_DSN",
			},
		},
		Action: func(c *cli.Context) error {
			command := c.Args().First()
			if command == "" {
				command = "up"
			}

			dsn := c.String("dsn")
			if dsn == "" {
				conf, err := config.Parse()
				if err != nil {
					return err
				}
				dsn = conf.Storage.DSN
			}

			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return errors.Wrap(err, "could not create database directory")
			}

			db, err := storage.OpenSQLite(dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.Migrate(c.Context, db, command); err != nil {
				return err
			}

			logger.Info(c.Context, "migration finished", "command", command, "dsn", dsn)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(context.Background(), err, "migration failed")
		os.Exit(1)
	}
}
