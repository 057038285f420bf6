package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"taskbot/internal/logger"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrations embed.FS

var gooseOnce sync.Once

// gooseLogger routes goose output through the application logger.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	logger.Info(context.Background(), fmt.Sprintf(format, v...), "component", "migrations")
}

// Fatalf does not exit; the error is returned to the caller by goose.
func (gooseLogger) Fatalf(format string, v ...interface{}) {
	logger.Error(context.Background(), nil, fmt.Sprintf(format, v...), "component", "migrations")
}

func setupGoose() error {
	var err error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations)
		goose.SetLogger(gooseLogger{})
		err = goose.SetDialect("sqlite3")
	})
	return errors.WithStack(err)
}

// Migrate runs a goose command ("up", "down", "status", "version", "reset")
// against db using the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, command string) error {
	if err := setupGoose(); err != nil {
		return err
	}

	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, migrationsDir)
	case "down":
		err = goose.DownContext(ctx, db, migrationsDir)
	case "status":
		err = goose.StatusContext(ctx, db, migrationsDir)
	case "version":
		err = goose.VersionContext(ctx, db, migrationsDir)
	case "reset":
		err = goose.ResetContext(ctx, db, migrationsDir)
	default:
		return errors.Errorf("unknown migration command %q", command)
	}

	return errors.Wrapf(err, "migration %s failed", command)
}
