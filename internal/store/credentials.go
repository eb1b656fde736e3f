package store

import (
	"context"
	"errors"
	"time"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CodeStore persists one-time sign-in codes, one per email.
type CodeStore struct {
	db *gorm.DB
}

// NewCodeStore constructs a CodeStore.
func NewCodeStore(db *gorm.DB) *CodeStore {
	return &CodeStore{db: db}
}

// Upsert stores a fresh code for email, replacing any previous one.
func (s *CodeStore) Upsert(ctx context.Context, email, code string, now time.Time) error {
	row := models.OneTimeCode{Email: email, Code: code, CreatedAt: now.UTC()}
	errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "created_at"}),
	}).Create(&row).Error
	return translate(errUpsert, "", "")
}

// Consume deletes the matching code and returns it. A missing code is a bad request.
func (s *CodeStore) Consume(ctx context.Context, email, code string) (models.OneTimeCode, error) {
	var row models.OneTimeCode
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errFind := tx.Where("email = ? AND code = ?", email, code).First(&row).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return apperr.BadRequest("code not found, use getcode before")
		}
		if errFind != nil {
			return translate(errFind, "", "")
		}
		res := tx.Delete(&models.OneTimeCode{}, row.ID)
		if res.Error != nil {
			return translate(res.Error, "", "")
		}
		if res.RowsAffected == 0 {
			return apperr.BadRequest("code not found, use getcode before")
		}
		return nil
	})
	if errTx != nil {
		return models.OneTimeCode{}, errTx
	}
	return row, nil
}

// TokenStore persists bearer tokens.
type TokenStore struct {
	db *gorm.DB
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Create stores a new token for the user.
func (s *TokenStore) Create(ctx context.Context, userID uint64, value, place string) (models.UserToken, error) {
	row := models.UserToken{
		PublicID: uuid.NewString(),
		Value:    value,
		Place:    place,
		UserID:   userID,
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return models.UserToken{}, translate(errCreate, "", "token collision")
	}
	return row, nil
}

// FindByValue resolves a bearer value to its token and user.
func (s *TokenStore) FindByValue(ctx context.Context, value string) (models.UserToken, error) {
	var row models.UserToken
	if errFind := s.db.WithContext(ctx).Preload("User").Where("value = ?", value).First(&row).Error; errFind != nil {
		return models.UserToken{}, translate(errFind, "token not found", "")
	}
	return row, nil
}

// FindByPublicID returns a token by its public UUID.
func (s *TokenStore) FindByPublicID(ctx context.Context, publicID string) (models.UserToken, error) {
	var row models.UserToken
	if errFind := s.db.WithContext(ctx).Where("public_id = ?", publicID).First(&row).Error; errFind != nil {
		return models.UserToken{}, translate(errFind, "token not found", "")
	}
	return row, nil
}

// ListForUser returns the user's tokens, newest first.
func (s *TokenStore) ListForUser(ctx context.Context, userID uint64) ([]models.UserToken, error) {
	var rows []models.UserToken
	if errFind := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&rows).Error; errFind != nil {
		return nil, translate(errFind, "", "")
	}
	return rows, nil
}

// Delete removes a token by primary key.
func (s *TokenStore) Delete(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Delete(&models.UserToken{}, id)
	if res.Error != nil {
		return translate(res.Error, "", "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("token not found")
	}
	return nil
}

// CursorStore persists bot polling cursors.
type CursorStore struct {
	db *gorm.DB
}

// NewCursorStore constructs a CursorStore.
func NewCursorStore(db *gorm.DB) *CursorStore {
	return &CursorStore{db: db}
}

// Load returns the last event id for the bot, zero when none is stored.
func (s *CursorStore) Load(ctx context.Context, bot string) (int64, error) {
	var row models.BotCursor
	errFind := s.db.WithContext(ctx).Where("bot = ?", bot).First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if errFind != nil {
		return 0, translate(errFind, "", "")
	}
	return row.LastEventID, nil
}

// Save stores the last event id for the bot.
func (s *CursorStore) Save(ctx context.Context, bot string, lastEventID int64) error {
	row := models.BotCursor{Bot: bot, LastEventID: lastEventID, UpdatedAt: time.Now().UTC()}
	errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bot"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_event_id", "updated_at"}),
	}).Create(&row).Error
	return translate(errUpsert, "", "")
}
