package models

import "time"

// Auth providers recorded on users.
const (
	AuthProviderSite   = "site"
	AuthProviderMyTeam = "myteam"
)

// User represents an account that can hold project grants.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	FirstName string  `gorm:"type:text;not null"` // Given name.
	LastName  string  `gorm:"type:text;not null"` // Family name.
	UserPic   *string `gorm:"type:text"`          // Optional avatar URL.

	AuthProvider string `gorm:"type:text;not null"`             // Identity source (site, myteam).
	AuthID       string `gorm:"type:text;not null;uniqueIndex"` // External identity, the email for both providers.
	Password     string `gorm:"type:text;not null;default:''"`  // Bcrypt hash, empty for bot-created users.

	Tokens []UserToken `gorm:"foreignKey:UserID"` // Related bearer tokens.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// DisplayName joins first and last name.
func (u User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
