package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"taskbot/internal/logger"
	"taskbot/internal/models"
)

const timeFormat = time.RFC3339Nano

type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn without touching its schema.
func OpenSQLite(dsn string) (*sql.DB, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "could not open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "could not connect to database")
	}

	return db, nil
}

// NewSQLiteStorage opens dsn and applies pending migrations.
func NewSQLiteStorage(ctx context.Context, dsn string) (*SQLiteStorage, error) {
	db, err := OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db, "up"); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info(ctx, "sqlite storage initialized", "dsn", dsn)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) GetTasks(ctx context.Context, userID int64) ([]models.Task, error) {
	query := `
	SELECT id, title, due_at, tags, priority, status, created_at, early_reminder_sent, due_reminder_sent
	FROM tasks WHERE user_id = ? ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// SetTasks replaces the user's whole list in one transaction.
func (s *SQLiteStorage) SetTasks(ctx context.Context, userID int64, tasks []models.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ?", userID); err != nil {
		return errors.WithStack(err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO tasks (user_id, id, position, title, due_at, tags, priority, status, created_at, early_reminder_sent, due_reminder_sent)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.WithStack(err)
	}
	defer stmt.Close()

	for i, task := range tasks {
		var dueAt interface{}
		if task.HasDue() {
			dueAt = task.Due.Format(timeFormat)
		}

		_, err := stmt.ExecContext(ctx,
			userID, task.ID, i, task.Title, dueAt, strings.Join(task.Tags, ","),
			string(task.Priority), string(task.Status), task.CreatedAt.Format(timeFormat),
			task.EarlyReminderSent, task.DueReminderSent,
		)
		if err != nil {
			return errors.Wrapf(err, "could not insert task %s", task.ID)
		}
	}

	return errors.WithStack(tx.Commit())
}

func (s *SQLiteStorage) GetUserProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	query := "SELECT user_id, chat_id, timezone FROM users WHERE user_id = ?"

	var profile models.UserProfile
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&profile.UserID, &profile.ChatID, &profile.Timezone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.WithStack(ErrNotFound)
		}
		return nil, errors.WithStack(err)
	}

	return &profile, nil
}

func (s *SQLiteStorage) UpsertUserProfile(ctx context.Context, profile models.UserProfile) error {
	query := `
	INSERT INTO users (user_id, chat_id, timezone, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET
		chat_id = excluded.chat_id,
		timezone = excluded.timezone,
		updated_at = excluded.updated_at`

	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.ExecContext(ctx, query, profile.UserID, profile.ChatID, profile.Timezone, now, now)
	return errors.WithStack(err)
}

func (s *SQLiteStorage) ListAllUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id FROM users ORDER BY user_id")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.WithStack(err)
		}
		ids = append(ids, id)
	}

	return ids, errors.WithStack(rows.Err())
}

func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	tasks := []models.Task{}
	for rows.Next() {
		var (
			task      models.Task
			dueAt     sql.NullString
			tags      string
			priority  string
			status    string
			createdAt string
		)

		err := rows.Scan(
			&task.ID, &task.Title, &dueAt, &tags, &priority, &status, &createdAt,
			&task.EarlyReminderSent, &task.DueReminderSent,
		)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		task.Priority = models.Priority(priority)
		task.Status = models.Status(status)

		if dueAt.Valid && dueAt.String != "" {
			if task.Due, err = time.Parse(timeFormat, dueAt.String); err != nil {
				return nil, errors.Wrapf(err, "task %s has a malformed due_at", task.ID)
			}
		}

		if task.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, errors.Wrapf(err, "task %s has a malformed created_at", task.ID)
		}

		if tags != "" {
			task.Tags = strings.Split(tags, ",")
		} else {
			task.Tags = []string{}
		}

		tasks = append(tasks, task)
	}

	return tasks, errors.WithStack(rows.Err())
}
