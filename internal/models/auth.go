package models

import "time"

// OneTimeCode is a short-lived sign-in code delivered through the bot.
type OneTimeCode struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email string `gorm:"type:text;not null;uniqueIndex"` // Recipient identity.
	Code  string `gorm:"type:text;not null"`             // Six-digit code.

	CreatedAt time.Time `gorm:"not null"` // Issue time, reset on every re-issue.
}

// UserToken is a long-lived bearer credential.
type UserToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PublicID string `gorm:"type:text;not null;uniqueIndex"` // UUID exposed to clients for revocation.
	Value    string `gorm:"type:text;not null;uniqueIndex"` // Secret bearer value.
	Place    string `gorm:"type:text;not null"`             // Human-readable label.

	UserID uint64 `gorm:"not null;index"`    // Owning user.
	User   *User  `gorm:"foreignKey:UserID"` // Owning user.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// BotCursor persists the last processed event id of a polling bot.
type BotCursor struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Bot         string `gorm:"type:text;not null;uniqueIndex"` // Bot identity, e.g. "myteam".
	LastEventID int64  `gorm:"not null;default:0"`             // Last consumed event id.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
