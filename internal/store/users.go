package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/distr-app/distr/internal/models"
	"gorm.io/gorm"
)

// UserStore persists accounts.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore constructs a UserStore.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByID returns a user by primary key.
func (s *UserStore) FindByID(ctx context.Context, id uint64) (models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, id).Error; errFind != nil {
		return models.User{}, translate(errFind, "user not found", "")
	}
	return user, nil
}

// FindByAuthID returns a user by external identity.
func (s *UserStore) FindByAuthID(ctx context.Context, authID string) (models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).Where("auth_id = ?", strings.TrimSpace(authID)).First(&user).Error; errFind != nil {
		return models.User{}, translate(errFind, "user not found", "")
	}
	return user, nil
}

// Create inserts a new user.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error, "", "user already exists")
}

// UpsertFromBot creates or refreshes a user reported by the messaging bot.
// It reports whether a new row was created.
func (s *UserStore) UpsertFromBot(ctx context.Context, authID, firstName, lastName string) (models.User, bool, error) {
	var (
		user    models.User
		created bool
	)
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errFind := tx.Where("auth_id = ?", authID).First(&user).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			user = models.User{
				FirstName:    firstName,
				LastName:     lastName,
				AuthProvider: models.AuthProviderMyTeam,
				AuthID:       authID,
			}
			created = true
			return translate(tx.Create(&user).Error, "", "user already exists")
		}
		if errFind != nil {
			return translate(errFind, "", "")
		}
		if errUpdate := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"first_name":    firstName,
			"last_name":     lastName,
			"auth_provider": models.AuthProviderMyTeam,
			"updated_at":    time.Now().UTC(),
		}).Error; errUpdate != nil {
			return translate(errUpdate, "", "")
		}
		user.FirstName = firstName
		user.LastName = lastName
		user.AuthProvider = models.AuthProviderMyTeam
		return nil
	})
	if errTx != nil {
		return models.User{}, false, errTx
	}
	return user, created, nil
}

// UpdatePassword stores a new password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, userID uint64, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"password":   hash,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return translate(res.Error, "", "")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "user not found", "")
	}
	return nil
}
