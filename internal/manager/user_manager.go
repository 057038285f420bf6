package manager

import (
	"context"

	"github.com/pkg/errors"

	"taskbot/internal/logger"
	"taskbot/internal/models"
	"taskbot/internal/storage"
)

// UserManager keeps the profile index used by reminder and digest runs.
type UserManager struct {
	storage storage.Storage
	tz      string
}

func NewUserManager(s storage.Storage, tz string) *UserManager {
	return &UserManager{
		storage: s,
		tz:      tz,
	}
}

// EnsureProfile records the chat the user last wrote from.
func (um *UserManager) EnsureProfile(ctx context.Context, userID, chatID int64) error {
	profile := models.UserProfile{
		UserID:   userID,
		ChatID:   chatID,
		Timezone: um.tz,
	}
	if err := um.storage.UpsertUserProfile(ctx, profile); err != nil {
		return errors.Wrap(err, "could not save user profile")
	}

	logger.Debug(ctx, "user profile stored", "user", userID, "chat", chatID)
	return nil
}

func (um *UserManager) GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	return um.storage.GetUserProfile(ctx, userID)
}
