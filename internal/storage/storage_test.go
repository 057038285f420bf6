package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbot/internal/models"
)

func sampleTasks(loc *time.Location) []models.Task {
	created := time.Date(2024, 1, 10, 8, 0, 0, 0, loc)
	return []models.Task{
		{
			ID:                "b1-0",
			Title:             "buy milk",
			Due:               time.Date(2024, 1, 11, 9, 0, 0, 0, loc),
			Tags:              []string{"personal"},
			Priority:          models.PriorityNormal,
			Status:            models.StatusOpen,
			CreatedAt:         created,
			EarlyReminderSent: true,
		},
		{
			ID:              "b1-1",
			Title:           "call John",
			Tags:            []string{"call", "work"},
			Priority:        models.PriorityHigh,
			Status:          models.StatusDone,
			CreatedAt:       created,
			DueReminderSent: true,
		},
	}
}

// Every implementation must pass the same behaviour checks.
func runStorageSuite(t *testing.T, s Storage) {
	ctx := context.Background()
	loc := time.FixedZone("IST", 5*3600+30*60)

	t.Run("empty user has no tasks", func(t *testing.T) {
		tasks, err := s.GetTasks(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("tasks round trip in order", func(t *testing.T) {
		want := sampleTasks(loc)
		require.NoError(t, s.SetTasks(ctx, 7, want))

		got, err := s.GetTasks(ctx, 7)
		require.NoError(t, err)
		require.Len(t, got, 2)

		for i := range want {
			assert.Equal(t, want[i].ID, got[i].ID)
			assert.Equal(t, want[i].Title, got[i].Title)
			assert.True(t, want[i].Due.Equal(got[i].Due), "due %v != %v", want[i].Due, got[i].Due)
			assert.Equal(t, want[i].Tags, got[i].Tags)
			assert.Equal(t, want[i].Priority, got[i].Priority)
			assert.Equal(t, want[i].Status, got[i].Status)
			assert.True(t, want[i].CreatedAt.Equal(got[i].CreatedAt))
			assert.Equal(t, want[i].EarlyReminderSent, got[i].EarlyReminderSent)
			assert.Equal(t, want[i].DueReminderSent, got[i].DueReminderSent)
		}
		assert.False(t, got[1].HasDue())
	})

	t.Run("set replaces the whole list", func(t *testing.T) {
		require.NoError(t, s.SetTasks(ctx, 7, sampleTasks(loc)[:1]))

		got, err := s.GetTasks(ctx, 7)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b1-0", got[0].ID)
	})

	t.Run("missing profile", func(t *testing.T) {
		_, err := s.GetUserProfile(ctx, 404)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("profile upsert and index", func(t *testing.T) {
		require.NoError(t, s.UpsertUserProfile(ctx, models.UserProfile{UserID: 9, ChatID: 90, Timezone: "Asia/Kolkata"}))
		require.NoError(t, s.UpsertUserProfile(ctx, models.UserProfile{UserID: 3, ChatID: 30, Timezone: "Asia/Kolkata"}))
		require.NoError(t, s.UpsertUserProfile(ctx, models.UserProfile{UserID: 9, ChatID: 91, Timezone: "Asia/Kolkata"}))

		profile, err := s.GetUserProfile(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, int64(91), profile.ChatID)

		ids, err := s.ListAllUserIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 9}, ids)
	})
}

func TestMemoryStorage(t *testing.T) {
	runStorageSuite(t, NewMemoryStorage())
}

func TestMemoryStorageCopiesTasks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	tasks := sampleTasks(time.UTC)
	require.NoError(t, s.SetTasks(ctx, 1, tasks))
	tasks[0].Title = "changed"

	got, err := s.GetTasks(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", got[0].Title)
}

func TestSQLiteStorage(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "taskbot.db")

	s, err := NewSQLiteStorage(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	runStorageSuite(t, s)
}

func TestSQLiteStorageReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "taskbot.db")

	s, err := NewSQLiteStorage(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.SetTasks(ctx, 1, sampleTasks(time.UTC)))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetTasks(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got[0].EarlyReminderSent)
}
