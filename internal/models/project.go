package models

import (
	"time"

	"gorm.io/datatypes"
)

// Integrations holds optional per-project notification channel settings.
type Integrations struct {
	TelegramToken *string `json:"telegram_token,omitempty"`
	TelegramID    *string `json:"telegram_id,omitempty"`
	MyTeamToken   *string `json:"myteam_token,omitempty"`
	MyTeamURL     *string `json:"myteam_url,omitempty"`
	MyTeamID      *string `json:"myteam_id,omitempty"`
}

// Project is a distribution unit owning branches and grants.
type Project struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string  `gorm:"type:text;not null;uniqueIndex"` // URL slug, globally unique.
	Title       string  `gorm:"type:text;not null"`             // Display name.
	BundleID    string  `gorm:"type:text;not null"`             // Application bundle identifier.
	Description *string `gorm:"type:text"`                      // Optional description.
	Icon        *string `gorm:"type:text"`                      // Optional icon URL.

	Integrations datatypes.JSONType[Integrations] `gorm:"type:json"` // Notification channel settings.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
