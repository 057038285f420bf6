package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"taskbot/internal/models"
)

var ErrNotFound = errors.New("not found")

// Storage persists per-user task lists and profiles. Reminder flags must be
// stored durably: the reminder scan relies on them to avoid duplicates.
type Storage interface {
	GetTasks(ctx context.Context, userID int64) ([]models.Task, error)
	SetTasks(ctx context.Context, userID int64, tasks []models.Task) error

	GetUserProfile(ctx context.Context, userID int64) (*models.UserProfile, error)
	UpsertUserProfile(ctx context.Context, profile models.UserProfile) error
	ListAllUserIDs(ctx context.Context) ([]int64, error)

	Close() error
}

// MemoryStorage keeps everything in process; used by tests and the
// "memory" storage driver.
type MemoryStorage struct {
	tasks map[int64][]models.Task
	users map[int64]models.UserProfile
	mu    sync.Mutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks: make(map[int64][]models.Task),
		users: make(map[int64]models.UserProfile),
	}
}

func (m *MemoryStorage) GetTasks(ctx context.Context, userID int64) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return cloneTasks(m.tasks[userID]), nil
}

func (m *MemoryStorage) SetTasks(ctx context.Context, userID int64, tasks []models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks[userID] = cloneTasks(tasks)
	return nil
}

func (m *MemoryStorage) GetUserProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, exists := m.users[userID]
	if !exists {
		return nil, errors.WithStack(ErrNotFound)
	}
	return &profile, nil
}

func (m *MemoryStorage) UpsertUserProfile(ctx context.Context, profile models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[profile.UserID] = profile
	return nil
}

func (m *MemoryStorage) ListAllUserIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func cloneTasks(tasks []models.Task) []models.Task {
	if tasks == nil {
		return []models.Task{}
	}
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		t.Tags = append([]string(nil), t.Tags...)
		out[i] = t
	}
	return out
}
